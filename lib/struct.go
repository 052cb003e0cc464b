package lib

import (
	"fmt"
	"net"
	"net/netip"
)

// Quad identifies a connection as seen on an inbound segment: Src is the
// remote peer and Dst is this endpoint. It is comparable and used directly as
// the connection table key.
type Quad struct {
	Src netip.AddrPort
	Dst netip.AddrPort
}

// NewQuad builds a Quad from the raw IPv4 addresses and ports of an inbound
// segment. The addresses are taken byte for byte, without normalization.
func NewQuad(srcIP, dstIP net.IP, srcPort, dstPort uint16) (Quad, error) {
	src, dst := srcIP.To4(), dstIP.To4()
	if src == nil || dst == nil {
		return Quad{}, fmt.Errorf("quad: non-IPv4 address %v -> %v", srcIP, dstIP)
	}
	return Quad{
		Src: netip.AddrPortFrom(netip.AddrFrom4([4]byte(src)), srcPort),
		Dst: netip.AddrPortFrom(netip.AddrFrom4([4]byte(dst)), dstPort),
	}, nil
}

func (q Quad) String() string {
	return fmt.Sprintf("%s->%s", q.Src, q.Dst)
}

// SendSequenceSpace is the send half of the TCB (RFC 793 section 3.2).
//
//	     1         2          3          4
//	----------|----------|----------|----------
//	       SND.UNA    SND.NXT    SND.UNA
//	                            +SND.WND
type SendSequenceSpace struct {
	una uint32 // oldest unacknowledged sequence number
	nxt uint32 // next sequence number to send
	wnd uint16 // receive window advertised by the peer
	up  bool   // urgent flag, stored only
	iss uint32 // initial send sequence number, chosen locally
}

// RecvSequenceSpace is the receive half of the TCB.
//
//	    1          2          3
//	----------|----------|----------
//	       RCV.NXT    RCV.NXT
//	                 +RCV.WND
type RecvSequenceSpace struct {
	nxt uint32 // next sequence number expected from the peer
	wnd uint16 // local receive window, fixed at creation
	up  bool   // urgent flag placeholder
	irs uint32 // initial receive sequence number, from the peer's SYN
}

// Segment is the part of an inbound TCP segment the state machine consumes.
type Segment struct {
	SEQ     uint32
	ACK     uint32
	WND     uint16
	Flags   uint8
	Payload []byte
}

// Has reports whether all bits of mask are set on the segment.
func (s *Segment) Has(mask uint8) bool { return s.Flags&mask == mask }

// Len is SEG.LEN: payload octets plus one each for SYN and FIN.
func (s *Segment) Len() uint32 {
	l := uint32(len(s.Payload))
	if s.Has(SYNFlag) {
		l++
	}
	if s.Has(FINFlag) {
		l++
	}
	return l
}

// FlagString renders flags as e.g. "[SYN,ACK]".
func FlagString(flags uint8) string {
	names := [...]string{"FIN", "SYN", "RST", "PSH", "ACK", "URG"}
	b := []byte{'['}
	for i, name := range names {
		if flags&(1<<i) == 0 {
			continue
		}
		if len(b) > 1 {
			b = append(b, ',')
		}
		b = append(b, name...)
	}
	return string(append(b, ']'))
}
