package lib

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ISNPolicy names a strategy for choosing the initial send sequence number.
type ISNPolicy string

const (
	// ISNZero always starts at 0. Predictable, for lab use and tests only.
	ISNZero ISNPolicy = "zero"
	// ISNRandom draws every ISN from crypto/rand.
	ISNRandom ISNPolicy = "random"
	// ISNClock follows the RFC 9293 clock: one tick every 4 microseconds.
	ISNClock ISNPolicy = "clock"
)

var ErrInvalidISNPolicy = errors.New("invalid ISN policy")

// ISNGenerator returns a fresh initial sequence number.
type ISNGenerator func() (uint32, error)

// Generator resolves the policy to an ISNGenerator.
func (p ISNPolicy) Generator() (ISNGenerator, error) {
	switch p {
	case ISNZero:
		return func() (uint32, error) { return 0, nil }, nil
	case ISNRandom, "":
		return GenerateISN, nil
	case ISNClock:
		return func() (uint32, error) { return uint32(time.Now().UnixMicro() / 4), nil }, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidISNPolicy, string(p))
}

func GenerateISN() (uint32, error) {
	// Generate a random 32-bit value
	var isn uint32
	err := binary.Read(rand.Reader, binary.BigEndian, &isn)
	if err != nil {
		return 0, err
	}
	return isn, nil
}
