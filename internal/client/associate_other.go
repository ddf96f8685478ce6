//go:build !unix && !windows

package client

import (
	"errors"
	"net"
)

func connectUDP(conn *net.UDPConn, remote *net.UDPAddr) error {
	return errors.ErrUnsupported
}
