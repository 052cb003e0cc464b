package lib

import (
	"encoding/binary"
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	testRemote = netip.MustParseAddrPort("192.168.0.2:40000")
	testLocal  = netip.MustParseAddrPort("192.168.0.1:80")
	testQuad   = Quad{Src: testRemote, Dst: testLocal}
)

const testISS = 1000

// recorder is an io.Writer that keeps every datagram written to it.
type recorder struct {
	datagrams [][]byte
	err       error
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.datagrams = append(r.datagrams, append([]byte(nil), b...))
	return len(b), nil
}

// sent is the comparable summary of an outbound segment.
type sent struct {
	Seq     uint32
	Ack     uint32
	Flags   string
	Window  uint16
	Payload int
}

func decodeSent(t *testing.T, datagram []byte) sent {
	t.Helper()
	packet := gopacket.NewPacket(datagram, layers.LayerTypeIPv4, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		t.Fatalf("decode outbound datagram: %v", errLayer.Error())
	}
	tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		t.Fatalf("outbound datagram carries no TCP layer")
	}
	return sent{
		Seq:     tcp.Seq,
		Ack:     tcp.Ack,
		Flags:   FlagString(segmentFromTCP(tcp).Flags),
		Window:  tcp.Window,
		Payload: len(tcp.Payload),
	}
}

func (r *recorder) sent(t *testing.T) []sent {
	t.Helper()
	var out []sent
	for _, d := range r.datagrams {
		out = append(out, decodeSent(t, d))
	}
	return out
}

func (r *recorder) reset() {
	r.datagrams = nil
}

func testConfig() *ConnectionConfig {
	return &ConnectionConfig{
		RecvWindow: 1024,
		MTU:        1500,
		ISN:        func() (uint32, error) { return testISS, nil },
	}
}

// inbound builds a datagram as the remote peer would send it, with valid
// IPv4 and TCP checksums.
func inbound(t *testing.T, seq, ack uint32, flags uint8, payload []byte) []byte {
	t.Helper()
	remoteIP, localIP := testRemote.Addr().As4(), testLocal.Addr().As4()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP(remoteIP[:]),
		DstIP:    net.IP(localIP[:]),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(testRemote.Port()),
		DstPort: layers.TCPPort(testLocal.Port()),
		Seq:     seq,
		Ack:     ack,
		Window:  4096,
		FIN:     flags&FINFlag != 0,
		SYN:     flags&SYNFlag != 0,
		RST:     flags&RSTFlag != 0,
		PSH:     flags&PSHFlag != 0,
		ACK:     flags&ACKFlag != 0,
		URG:     flags&URGFlag != 0,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// refreshIPv4Checksum recomputes the header checksum of a datagram whose
// IPv4 header was edited in place.
func refreshIPv4Checksum(datagram []byte) {
	binary.BigEndian.PutUint16(datagram[10:12], 0)
	binary.BigEndian.PutUint16(datagram[10:12], CalculateChecksum(datagram[:IpHeaderLength]))
}

// frame prepends the TUN packet information header.
func frame(proto uint16, datagram []byte) []byte {
	return append([]byte{0, 0, byte(proto >> 8), byte(proto)}, datagram...)
}
