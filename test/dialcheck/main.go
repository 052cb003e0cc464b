/*
dialcheck connects to an address served by tun-tcp through the kernel stack
and checks that the endpoint completes the handshake and then closes the
connection without sending data.

Usage:

	dialcheck -addr 192.168.0.2:80 -timeout 3s
*/
package main

import (
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

func main() {
	addr := flag.String("addr", "192.168.0.2:80", "address routed through the TUN link")
	timeout := flag.Duration("timeout", 3*time.Second, "dial and read timeout")
	flag.Parse()

	if err := check(*addr, *timeout); err != nil {
		log.WithError(err).Error("Check failed")
		os.Exit(1)
	}
	log.Println("OK: handshake completed and peer closed")
}

func check(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp4", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.WithFields(log.Fields{"local": conn.LocalAddr(), "remote": conn.RemoteAddr()}).Info("Connected")

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}
	return errors.New("unexpected data from peer: " + string(buf[:n]))
}
