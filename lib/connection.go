package lib

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// ConnectionConfig holds the per-connection parameters fixed at Accept time.
type ConnectionConfig struct {
	RecvWindow uint16       `yaml:"recv_window"` // advertised local receive window
	ISNPolicy  ISNPolicy    `yaml:"isn_policy"`  // zero, random or clock
	MTU        int          `yaml:"-"`           // largest datagram the writer emits, set from CoreConfig
	ISN        ISNGenerator `yaml:"-"`           // overrides ISNPolicy when set
}

func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		RecvWindow: 1024,
		ISNPolicy:  ISNRandom,
		MTU:        1500,
	}
}

// Connection is the TCB of one Quad plus the state machine driving it.
type Connection struct {
	quad  Quad
	state State
	send  SendSequenceSpace
	recv  RecvSequenceSpace
	mtu   int
}

// emission is a segment the state machine wants on the wire. SEQ and ACK are
// stamped from the TCB at write time; resets carry their own SEQ.
type emission struct {
	flags  uint8
	rstSeq uint32
}

// Accept creates the connection for a Quad seen for the first time. Segments
// without SYN, or carrying RST, create nothing and get no answer: Accept
// returns nil, nil.
func Accept(nic io.Writer, quad Quad, seg Segment, config *ConnectionConfig) (*Connection, error) {
	if !seg.Has(SYNFlag) || seg.Has(RSTFlag) {
		log.WithFields(log.Fields{"quad": quad, "flags": FlagString(seg.Flags)}).Debug("Ignoring non-SYN segment for unknown connection")
		return nil, nil
	}

	isnGen := config.ISN
	if isnGen == nil {
		var err error
		if isnGen, err = config.ISNPolicy.Generator(); err != nil {
			return nil, err
		}
	}
	iss, err := isnGen()
	if err != nil {
		return nil, err
	}

	c := &Connection{
		quad:  quad,
		state: SynRcvd,
		send: SendSequenceSpace{
			iss: iss,
			una: iss,
			nxt: iss,
			wnd: seg.WND,
		},
		recv: RecvSequenceSpace{
			irs: seg.SEQ,
			nxt: SeqIncrement(seg.SEQ),
			wnd: config.RecvWindow,
		},
		mtu: config.MTU,
	}

	// SYN-ACK consumes one sequence number, so send.nxt ends at iss+1.
	if _, err := c.write(nic, SYNFlag|ACKFlag, nil); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"quad": quad, "iss": iss, "irs": seg.SEQ}).Debug("Sent SYN-ACK")
	return c, nil
}

// OnPacket processes one inbound segment of an existing connection and writes
// whatever the state machine emits, in order.
func (c *Connection) OnPacket(nic io.Writer, seg Segment) error {
	prev := c.state
	out, err := c.step(seg)
	if err != nil {
		return err
	}
	for _, e := range out {
		if e.flags&RSTFlag != 0 {
			_, err = c.writeReset(nic, e.rstSeq)
		} else {
			_, err = c.write(nic, e.flags, nil)
		}
		if err != nil {
			return err
		}
	}
	if prev != c.state {
		log.WithFields(log.Fields{"quad": c.quad, "from": prev, "to": c.state}).Debug("State transition")
	}
	return nil
}

// step advances the TCB and state for one inbound segment and returns the
// segments to emit. It never touches the transport.
func (c *Connection) step(seg Segment) ([]emission, error) {
	seglen := seg.Len()

	if !c.isAcceptable(seg.SEQ, seglen) {
		if seg.Has(RSTFlag) {
			return nil, nil // a reset is never answered
		}
		return []emission{{flags: ACKFlag}}, nil
	}
	// No reassembly: an accepted segment is assumed to be the next expected one.
	c.recv.nxt = SeqIncrementBy(c.recv.nxt, seglen)

	if seg.Has(RSTFlag) {
		c.state = Closed
		return nil, nil
	}
	if !seg.Has(ACKFlag) {
		return nil, nil
	}

	switch {
	case IsStrictlyBetween(c.send.una, seg.ACK, SeqIncrement(c.send.nxt)):
		// SND.UNA < SEG.ACK =< SND.NXT
		c.send.una = seg.ACK
		c.send.wnd = seg.WND
	case !c.state.IsSynchronized():
		return []emission{{flags: RSTFlag, rstSeq: seg.ACK}}, nil
	case seg.ACK != c.send.una:
		// A repeat of the latest acknowledgment falls through: it acks
		// nothing new but may still carry a FIN.
		return nil, nil
	}

	hasFin := seg.Has(FINFlag)
	hasData := len(seg.Payload) > 0

	switch c.state {
	case SynRcvd:
		// Accepted connections are closed right away: there is no data phase.
		c.state = Estab
		log.WithField("quad", c.quad).Debug("Connection established, starting close")
		c.state = FinWait1
		return []emission{{flags: FINFlag | ACKFlag}}, nil

	case FinWait1:
		switch {
		case hasFin && !hasData:
			c.state = Closing
			return []emission{{flags: ACKFlag}}, nil
		case !hasFin && !hasData:
			if c.send.una == c.send.nxt {
				c.state = FinWait2 // our FIN is acknowledged
			}
			return nil, nil
		}
		return nil, c.unhandled(seg)

	case FinWait2:
		switch {
		case hasFin && !hasData:
			c.state = TimeWait
			return []emission{{flags: ACKFlag}}, nil
		case !hasFin && !hasData:
			return nil, nil
		}
		return nil, c.unhandled(seg)
	}

	if hasFin || hasData {
		return nil, c.unhandled(seg)
	}
	return nil, nil
}

func (c *Connection) unhandled(seg Segment) error {
	return &StateError{State: c.state, Flags: seg.Flags, PayloadLen: len(seg.Payload)}
}

// isAcceptable implements the four-case segment acceptance test of
// RFC 793 section 3.3.
//
//	Segment Receive  Test
//	Length  Window
//	------- -------  -------------------------------------------
//	   0       0     SEG.SEQ = RCV.NXT
//	   0      >0     RCV.NXT =< SEG.SEQ < RCV.NXT+RCV.WND
//	  >0       0     not acceptable
//	  >0      >0     RCV.NXT =< SEG.SEQ < RCV.NXT+RCV.WND
//	                 and RCV.NXT =< SEG.SEQ+SEG.LEN-1 < RCV.NXT+RCV.WND
func (c *Connection) isAcceptable(seq, seglen uint32) bool {
	lo := c.recv.nxt - 1 // make RCV.NXT inclusive
	wend := SeqIncrementBy(c.recv.nxt, uint32(c.recv.wnd))

	if seglen == 0 {
		if c.recv.wnd == 0 {
			return seq == c.recv.nxt
		}
		return IsStrictlyBetween(lo, seq, wend)
	}
	if c.recv.wnd == 0 {
		return false
	}
	last := SeqIncrementBy(seq, seglen-1)
	return IsStrictlyBetween(lo, seq, wend) && IsStrictlyBetween(lo, last, wend)
}

func (c *Connection) Quad() Quad { return c.quad }

func (c *Connection) State() State { return c.state }

// SendNext and friends expose TCB fields for logging and tests.
func (c *Connection) SendNext() uint32 { return c.send.nxt }

func (c *Connection) SendUnacked() uint32 { return c.send.una }

func (c *Connection) RecvNext() uint32 { return c.recv.nxt }

func (c *Connection) ISS() uint32 { return c.send.iss }

func (c *Connection) IRS() uint32 { return c.recv.irs }
