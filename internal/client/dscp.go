package client

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// setDSCP marks outgoing datagrams with the given DSCP code point.
func setDSCP(conn *net.UDPConn, network string, dscp int) error {
	if dscp < 0 || dscp > 63 {
		return fmt.Errorf("dscp %d out of range 0-63", dscp)
	}
	tos := dscp << 2
	if network == "udp4" {
		if err := ipv4.NewConn(conn).SetTOS(tos); err != nil {
			return fmt.Errorf("set TOS: %w", err)
		}
		return nil
	}
	if err := ipv6.NewConn(conn).SetTrafficClass(tos); err != nil {
		return fmt.Errorf("set traffic class: %w", err)
	}
	return nil
}
