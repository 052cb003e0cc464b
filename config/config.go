// Package config loads the server configuration from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/Clouded-Sabre/tun-tcp/lib"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk layout: core settings at the top level,
// per-connection settings under "connection".
type fileConfig struct {
	lib.CoreConfig `yaml:",inline"`
	Connection     lib.ConnectionConfig `yaml:"connection"`
}

// LoadConfig reads path and returns the core and connection configuration.
// Keys absent from the file keep their defaults.
func LoadConfig(path string) (*lib.CoreConfig, *lib.ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration from data.
func ParseConfig(data []byte) (*lib.CoreConfig, *lib.ConnectionConfig, error) {
	fc := fileConfig{
		CoreConfig: *lib.DefaultCoreConfig(),
		Connection: *lib.DefaultConnectionConfig(),
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}
	core, conn := &fc.CoreConfig, &fc.Connection
	if err := Validate(core, conn); err != nil {
		return nil, nil, err
	}
	conn.MTU = core.MTU
	return core, conn, nil
}

// Validate reports the first setting that cannot be used.
func Validate(core *lib.CoreConfig, conn *lib.ConnectionConfig) error {
	if core.InterfaceName == "" {
		return fmt.Errorf("interface_name must not be empty")
	}
	if floor := lib.IpHeaderLength + lib.TcpHeaderLength; core.MTU < floor {
		return fmt.Errorf("mtu %d is below %d", core.MTU, floor)
	}
	if core.FramePoolSize < 1 {
		return fmt.Errorf("frame_pool_size must be positive, got %d", core.FramePoolSize)
	}
	if _, err := conn.ISNPolicy.Generator(); err != nil {
		return err
	}
	return nil
}
