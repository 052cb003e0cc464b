//go:build !linux
// +build !linux

package netsetup

import (
	"fmt"
	"runtime"
)

func NewConfigurator() (Configurator, error) {
	return nil, fmt.Errorf("link setup is not supported on %s", runtime.GOOS)
}
