//go:build linux
// +build linux

package netsetup

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

type netlinkConfigurator struct {
	link netlink.Link
	addr *netlink.Addr
}

func NewConfigurator() (Configurator, error) {
	return &netlinkConfigurator{}, nil
}

func (c *netlinkConfigurator) Configure(name, cidr string, mtu int) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to get interface %s: %w", name, err)
	}
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", cidr, err)
	}
	if err := netlink.AddrReplace(link, addr); err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", cidr, name, err)
	}
	c.link, c.addr = link, addr

	if err := netlink.LinkSetMTU(link, mtu); err != nil {
		return fmt.Errorf("failed to set mtu %d on %s: %w", mtu, name, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring %s up: %w", name, err)
	}
	log.WithFields(log.Fields{"iface": name, "addr": cidr, "mtu": mtu}).Info("Configured TUN link")
	return nil
}

func (c *netlinkConfigurator) Teardown() error {
	if c.link == nil {
		return nil
	}
	if err := netlink.AddrDel(c.link, c.addr); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", c.addr, c.link.Attrs().Name, err)
	}
	c.link, c.addr = nil, nil
	return nil
}
