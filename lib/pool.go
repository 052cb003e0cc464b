package lib

import (
	"fmt"

	rp "github.com/Clouded-Sabre/ringpool/lib"
	log "github.com/sirupsen/logrus"
)

// FrameBuffer is a receive buffer drawn from the ring pool. One frame read
// from the device lives in it until the frame is fully processed.
type FrameBuffer struct {
	frameBytes []byte
	length     int
}

// NewFrameBuffer is the ring pool constructor. Its single parameter is the
// buffer capacity in bytes.
func NewFrameBuffer(params ...interface{}) rp.DataInterface {
	if len(params) != 1 {
		log.Println("NewFrameBuffer: Invalid number of calling parameters. Should be only one: bufferlength")
		return nil
	}
	bufferLength, ok := params[0].(int)
	if !ok {
		log.Println("NewFrameBuffer: Invalid data type of bufferLength. Should be of type int")
		return nil
	}
	return &FrameBuffer{
		frameBytes: make([]byte, bufferLength),
	}
}

// NewFramePool creates the pool Serve reads frames into.
func NewFramePool(size, bufferLength int) *rp.RingPool {
	return rp.NewRingPool("tun-tcp: ", size, NewFrameBuffer, bufferLength)
}

// SetContent sets the content of the buffer.
func (f *FrameBuffer) SetContent(s string) {
	f.length = copy(f.frameBytes, s)
}

// Reset marks the buffer empty.
func (f *FrameBuffer) Reset() {
	f.length = 0
}

// PrintContent prints the frame bytes held in the buffer.
func (f *FrameBuffer) PrintContent() {
	fmt.Printf("Frame: % x\n", f.frameBytes[:f.length])
}

// Space returns the whole backing array for a device read.
func (f *FrameBuffer) Space() []byte {
	return f.frameBytes
}

// SetLength records how many bytes of Space hold the current frame.
func (f *FrameBuffer) SetLength(n int) {
	f.length = n
}

func (f *FrameBuffer) GetSlice() []byte {
	return f.frameBytes[:f.length]
}
