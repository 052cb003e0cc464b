package lib

// TCP flag constants, laid out as in byte 13 of the TCP header.
const (
	URGFlag uint8 = 1 << 5
	ACKFlag uint8 = 1 << 4
	PSHFlag uint8 = 1 << 3
	RSTFlag uint8 = 1 << 2
	SYNFlag uint8 = 1 << 1
	FINFlag uint8 = 1 << 0
)

const (
	ProtocolID            = 6  // IPv4 protocol number for TCP
	TcpHeaderLength       = 20 // options not included
	TcpPseudoHeaderLength = 12
	IpHeaderLength        = 20 // options are never emitted
	DefaultTTL            = 64
)

// Link-level framing of a TUN device opened with packet information.
const (
	FrameHeaderLength = 4      // 2 bytes flags + 2 bytes protocol
	FrameProtoIPv4    = 0x0800 // the only protocol type handed to the core
)
