package lib

func SeqIncrement(seq uint32) uint32 {
	return seq + 1 // implicit modulo operation included
}

func SeqIncrementBy(seq, inc uint32) uint32 {
	return seq + inc // implicit modulo operation included
}

// IsStrictlyBetween reports whether x lies strictly inside the circular
// interval (start, end) of the 32-bit sequence space.
//
//	0 |-------------S------X---E-----------------| true
//	0 |----------E--S------X---------------------| true
//	0 |-------------S--E---X---------------------| false
//	0 |-------------X------E---------------S-----| true
//
// An interval whose end has collapsed onto or behind x yields false rather
// than an error. Callers widen inclusive bounds themselves, e.g. passing
// nxt-1 as start to admit nxt.
func IsStrictlyBetween(start, x, end uint32) bool {
	switch {
	case start == x:
		return false
	case start < x:
		// end caught up into [start, x]
		if end >= start && end <= x {
			return false
		}
	default:
		// x already wrapped past start; end must sit between them
		if !(end < start && end > x) {
			return false
		}
	}
	return true
}
