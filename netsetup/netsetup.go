// Package netsetup prepares the host side of the TUN link: it assigns the
// local address, sets the MTU and brings the interface up.
package netsetup

type Configurator interface {
	Configure(name, cidr string, mtu int) error // assigns cidr to the link called name, sets mtu and brings it up.
	Teardown() error                            // removes the address Configure added.
}
