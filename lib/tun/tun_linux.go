//go:build linux
// +build linux

// Package tun opens Linux TUN devices for the frame loop.
package tun

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Device is a TUN interface opened with packet information enabled: every
// frame read or written starts with a 2-byte flags and 2-byte protocol header.
type Device struct {
	name string
	file *os.File
}

// Open attaches to (or creates) the TUN interface called name. Reads and
// writes on the returned device block the calling goroutine.
func Open(name string) (*Device, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/net/tun: %w", err)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tun %q: %w", name, err)
	}
	ifr.SetUint16(unix.IFF_TUN)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("TUNSETIFF %q: %w", name, err)
	}

	// Non-blocking mode lets the runtime poller park reads, so Close wakes
	// a goroutine blocked in Read.
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tun %q: %w", name, err)
	}

	return &Device{
		name: ifr.Name(),
		file: os.NewFile(uintptr(fd), "/dev/net/tun"),
	}, nil
}

// Name returns the interface name the kernel assigned.
func (d *Device) Name() string { return d.name }

// Read receives one frame into b.
func (d *Device) Read(b []byte) (int, error) { return d.file.Read(b) }

// Write sends one complete frame.
func (d *Device) Write(b []byte) (int, error) { return d.file.Write(b) }

// Close releases the device; a blocked Read returns os.ErrClosed.
func (d *Device) Close() error { return d.file.Close() }
