package lib

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	rp "github.com/Clouded-Sabre/ringpool/lib"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
)

type CoreConfig struct {
	InterfaceName  string `yaml:"interface_name"`  // TUN device name
	LocalCIDR      string `yaml:"local_cidr"`      // address assigned to the TUN link, e.g. 192.168.0.1/24
	MTU            int    `yaml:"mtu"`             // largest IP datagram read or written
	FramePoolSize  int    `yaml:"frame_pool_size"` // number of receive buffers in the ring pool
	VerifyChecksum bool   `yaml:"verify_checksum"` // drop inbound segments with a bad TCP checksum
	LogLevel       string `yaml:"log_level"`       // logrus level name
}

func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		InterfaceName:  "tun0",
		LocalCIDR:      "192.168.0.1/24",
		MTU:            1500,
		FramePoolSize:  8,
		VerifyChecksum: true,
		LogLevel:       "info",
	}
}

// Core demultiplexes inbound datagrams onto connections and runs the frame
// loop. It is single-threaded: every frame is fully processed, replies
// included, before the next one is read.
type Core struct {
	config     *CoreConfig
	connConfig *ConnectionConfig
	table      *ConnTable
}

func NewCore(config *CoreConfig, connConfig *ConnectionConfig, table *ConnTable) (*Core, error) {
	if config.MTU < IpHeaderLength+TcpHeaderLength {
		return nil, fmt.Errorf("mtu %d cannot hold an IPv4 and TCP header", config.MTU)
	}
	cc := *connConfig
	cc.MTU = config.MTU
	if cc.ISN == nil {
		isn, err := cc.ISNPolicy.Generator()
		if err != nil {
			return nil, err
		}
		cc.ISN = isn
	}
	return &Core{
		config:     config,
		connConfig: &cc,
		table:      table,
	}, nil
}

// HandleDatagram processes one IPv4 datagram. Malformed, non-TCP and
// unacceptable input is dropped and yields nil; only transmission failures
// are returned, and the connection they hit is removed from the table.
func (p *Core) HandleDatagram(nic io.Writer, datagram []byte) error {
	packet := gopacket.NewPacket(datagram, layers.LayerTypeIPv4, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		log.WithError(packetError(packet)).Warn("Unable to read IPv4 packet, skipping")
		return nil
	}
	if p.config.VerifyChecksum && (len(ip.Contents) < IpHeaderLength || CalculateChecksum(ip.Contents) != 0) {
		log.WithFields(log.Fields{"src": ip.SrcIP, "dst": ip.DstIP}).Warn("Bad IPv4 header checksum, dropping packet")
		return nil
	}
	if ip.Protocol != layers.IPProtocolTCP {
		log.WithFields(log.Fields{"src": ip.SrcIP, "dst": ip.DstIP, "proto": ip.Protocol}).Trace("Skipping non-TCP packet")
		return nil
	}
	tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok || packet.ErrorLayer() != nil {
		log.WithError(packetError(packet)).WithFields(log.Fields{"src": ip.SrcIP, "dst": ip.DstIP}).Warn("Unable to read TCP segment, skipping")
		return nil
	}

	quad, err := NewQuad(ip.SrcIP, ip.DstIP, uint16(tcp.SrcPort), uint16(tcp.DstPort))
	if err != nil {
		log.WithError(err).Warn("Skipping packet")
		return nil
	}
	if p.config.VerifyChecksum && !VerifyTCPChecksum(quad.Src.Addr(), quad.Dst.Addr(), ip.Payload) {
		log.WithField("quad", quad).Warn("Bad TCP checksum, dropping segment")
		return nil
	}
	seg := segmentFromTCP(tcp)

	conn, ok := p.table.Get(quad)
	if !ok {
		conn, err = Accept(nic, quad, seg, p.connConfig)
		if err != nil {
			return err
		}
		if conn != nil {
			p.table.Put(conn)
			log.WithField("quad", quad).Info("New connection")
		}
		return nil
	}

	err = conn.OnPacket(nic, seg)
	var stateErr *StateError
	switch {
	case errors.As(err, &stateErr):
		log.WithError(err).WithField("quad", quad).Error("Dropping connection")
		p.table.Remove(quad)
		return nil
	case err != nil:
		// step already moved the TCB past the segment that was never sent.
		log.WithError(err).WithField("quad", quad).Error("Dropping connection")
		p.table.Remove(quad)
		return err
	}
	if conn.State() == Closed {
		log.WithField("quad", quad).Info("Connection reset by peer")
		p.table.Remove(quad)
	}
	return nil
}

// Serve reads frames from dev until ctx is done, the device reaches EOF or is
// closed, or a transmission fails. Replies are written back to dev with the
// same link framing.
func (p *Core) Serve(ctx context.Context, dev io.ReadWriter) error {
	pool := NewFramePool(p.config.FramePoolSize, p.config.MTU+FrameHeaderLength)
	nic := &frameWriter{dev: dev}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := p.serveOne(dev, nic, pool); err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
				log.Println("Device closed, stopping frame loop")
				return nil
			case ctx.Err() != nil:
				return nil
			}
			return err
		}
	}
}

func (p *Core) serveOne(dev io.Reader, nic io.Writer, pool *rp.RingPool) error {
	elem := pool.GetElement()
	defer pool.ReturnElement(elem)
	buf := elem.Data.(*FrameBuffer)

	n, err := dev.Read(buf.Space())
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	buf.SetLength(n)

	datagram, ok := parseFrame(buf.GetSlice())
	if !ok {
		return nil
	}
	return p.HandleDatagram(nic, datagram)
}

// Table exposes the connection table, mostly for inspection.
func (p *Core) Table() *ConnTable {
	return p.table
}

// parseFrame strips the packet information header of a TUN frame and reports
// whether the frame carries IPv4.
func parseFrame(frame []byte) ([]byte, bool) {
	if len(frame) < FrameHeaderLength {
		log.WithField("len", len(frame)).Debug("Short frame, skipping")
		return nil, false
	}
	if proto := binary.BigEndian.Uint16(frame[2:4]); proto != FrameProtoIPv4 {
		log.WithField("proto", fmt.Sprintf("0x%04x", proto)).Trace("Skipping non-IPv4 frame")
		return nil, false
	}
	return frame[FrameHeaderLength:], true
}

// frameWriter prepends the packet information header to every datagram.
type frameWriter struct {
	dev io.Writer
	buf []byte
}

func (w *frameWriter) Write(datagram []byte) (int, error) {
	w.buf = append(w.buf[:0], 0, 0, FrameProtoIPv4>>8, FrameProtoIPv4&0xff)
	w.buf = append(w.buf, datagram...)
	n, err := w.dev.Write(w.buf)
	n -= FrameHeaderLength
	if n < 0 {
		n = 0
	}
	return n, err
}

func segmentFromTCP(tcp *layers.TCP) Segment {
	var flags uint8
	for _, f := range []struct {
		set  bool
		flag uint8
	}{
		{tcp.FIN, FINFlag},
		{tcp.SYN, SYNFlag},
		{tcp.RST, RSTFlag},
		{tcp.PSH, PSHFlag},
		{tcp.ACK, ACKFlag},
		{tcp.URG, URGFlag},
	} {
		if f.set {
			flags |= f.flag
		}
	}
	return Segment{
		SEQ:     tcp.Seq,
		ACK:     tcp.Ack,
		WND:     tcp.Window,
		Flags:   flags,
		Payload: tcp.Payload,
	}
}

func packetError(packet gopacket.Packet) error {
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return errLayer.Error()
	}
	return errors.New("no layer decoded")
}
