//go:build !linux
// +build !linux

package tun

import (
	"errors"
	"runtime"
)

type Device struct{}

func Open(name string) (*Device, error) {
	return nil, errors.New("tun devices are not supported on " + runtime.GOOS)
}

func (d *Device) Name() string                { return "" }
func (d *Device) Read(b []byte) (int, error)  { return 0, errors.ErrUnsupported }
func (d *Device) Write(b []byte) (int, error) { return 0, errors.ErrUnsupported }
func (d *Device) Close() error                { return nil }
