package lib

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
)

// write emits one segment carrying flags and payload and advances send.nxt by
// what the segment occupies in sequence space. It returns the number of bytes
// the transport accepted.
func (c *Connection) write(nic io.Writer, flags uint8, payload []byte) (int, error) {
	return c.transmit(nic, c.send.nxt, flags, payload)
}

// writeReset answers an unacceptable ACK in an unsynchronized state with
// <SEQ=SEG.ACK><CTL=RST>. Resets occupy no sequence space.
func (c *Connection) writeReset(nic io.Writer, seq uint32) (int, error) {
	return c.transmit(nic, seq, RSTFlag, nil)
}

func (c *Connection) transmit(nic io.Writer, seq uint32, flags uint8, payload []byte) (int, error) {
	// Truncate silently rather than fragment.
	room := c.mtu - IpHeaderLength - TcpHeaderLength
	if room < 0 {
		room = 0
	}
	if len(payload) > room {
		payload = payload[:room]
	}

	var ack uint32
	if flags&ACKFlag != 0 {
		ack = c.recv.nxt
	}
	local, remote := c.quad.Dst, c.quad.Src

	datagram, err := buildDatagram(local, remote, seq, ack, c.recv.wnd, flags, payload)
	if err != nil {
		return 0, fmt.Errorf("build segment for %s: %w", c.quad, err)
	}

	n, err := nic.Write(datagram)
	if err != nil {
		return n, fmt.Errorf("transmit %s to %s: %w", FlagString(flags), c.quad.Src, err)
	}
	log.WithFields(log.Fields{
		"quad":  c.quad,
		"seq":   seq,
		"ack":   ack,
		"flags": FlagString(flags),
		"len":   len(payload),
	}).Trace("Sent segment")

	if flags&RSTFlag != 0 {
		return n, nil
	}
	// SYN and FIN each occupy one sequence number.
	adv := uint32(len(payload))
	if flags&SYNFlag != 0 {
		adv++
	}
	if flags&FINFlag != 0 {
		adv++
	}
	c.send.nxt = SeqIncrementBy(c.send.nxt, adv)
	return n, nil
}

// buildDatagram serializes a fresh IPv4 header, TCP header and payload. The
// TCP checksum is computed here over the pseudo-header; gopacket only fills
// in the IPv4 header checksum.
func buildDatagram(local, remote netip.AddrPort, seq, ack uint32, wnd uint16, flags uint8, payload []byte) ([]byte, error) {
	tcp := &layers.TCP{
		SrcPort:    layers.TCPPort(local.Port()),
		DstPort:    layers.TCPPort(remote.Port()),
		Seq:        seq,
		Ack:        ack,
		DataOffset: TcpHeaderLength / 4,
		Window:     wnd,
		FIN:        flags&FINFlag != 0,
		SYN:        flags&SYNFlag != 0,
		RST:        flags&RSTFlag != 0,
		PSH:        flags&PSHFlag != 0,
		ACK:        flags&ACKFlag != 0,
		URG:        flags&URGFlag != 0,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, tcp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	segment := buf.Bytes()
	binary.BigEndian.PutUint16(segment[16:18], TCPChecksum(local.Addr(), remote.Addr(), segment))

	localIP, remoteIP := local.Addr().As4(), remote.Addr().As4()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      IpHeaderLength / 4,
		Length:   uint16(IpHeaderLength + len(segment)),
		Flags:    layers.IPv4DontFragment,
		TTL:      DefaultTTL,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP(localIP[:]),
		DstIP:    net.IP(remoteIP[:]),
	}
	if err := ip.SerializeTo(buf, gopacket.SerializeOptions{ComputeChecksums: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TCPChecksum computes the TCP checksum of segment, whose checksum field must
// be zero, as carried between src and dst.
func TCPChecksum(src, dst netip.Addr, segment []byte) uint16 {
	buffer := make([]byte, TcpPseudoHeaderLength+len(segment))
	assemblePseudoHeader(buffer[:TcpPseudoHeaderLength], src, dst, ProtocolID, uint16(len(segment)))
	copy(buffer[TcpPseudoHeaderLength:], segment)
	return CalculateChecksum(buffer)
}

// VerifyTCPChecksum reports whether segment carries a valid checksum.
func VerifyTCPChecksum(src, dst netip.Addr, segment []byte) bool {
	if len(segment) < TcpHeaderLength {
		return false
	}
	// Summing over a correct checksum field folds to zero.
	return TCPChecksum(src, dst, segment) == 0
}

func CalculateChecksum(buffer []byte) uint16 {
	var cksum uint32 = 0

	// Process 16-bit words (2 bytes each)
	for i := 0; i < len(buffer)-1; i += 2 {
		cksum += uint32(binary.BigEndian.Uint16(buffer[i : i+2]))
	}

	// Handle remaining odd byte, if any
	if len(buffer)%2 != 0 {
		cksum += uint32(buffer[len(buffer)-1]) << 8
	}

	// Fold 32-bit sum to 16 bits
	for cksum>>16 != 0 {
		cksum = (cksum >> 16) + (cksum & 0xffff)
	}

	return ^uint16(cksum)
}

// assemblePseudoHeader writes the 12-byte IPv4 pseudo-header into buffer.
func assemblePseudoHeader(buffer []byte, src, dst netip.Addr, protocolId uint8, tcpLength uint16) {
	srcIP, dstIP := src.As4(), dst.As4()
	copy(buffer[0:4], srcIP[:])
	copy(buffer[4:8], dstIP[:])
	buffer[8] = 0
	buffer[9] = protocolId
	binary.BigEndian.PutUint16(buffer[10:12], tcpLength)
}
