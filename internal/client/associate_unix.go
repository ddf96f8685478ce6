//go:build unix

package client

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// connectUDP performs connect(2) on the bound socket so the kernel fixes its
// peer. Datagrams from other sources are dropped and plain Read/Write work.
func connectUDP(conn *net.UDPConn, remote *net.UDPAddr) error {
	sa, err := sockaddr(remote)
	if err != nil {
		return err
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var connectErr error
	if err := raw.Control(func(fd uintptr) {
		connectErr = unix.Connect(int(fd), sa)
	}); err != nil {
		return err
	}
	if connectErr != nil {
		return os.NewSyscallError("connect", connectErr)
	}
	return nil
}

func sockaddr(remote *net.UDPAddr) (unix.Sockaddr, error) {
	if ip4 := remote.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: remote.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}

	ip6 := remote.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("invalid remote address %q", remote.IP)
	}
	sa := &unix.SockaddrInet6{Port: remote.Port}
	copy(sa.Addr[:], ip6)
	if remote.Zone != "" {
		ifi, err := net.InterfaceByName(remote.Zone)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", remote.Zone, err)
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return sa, nil
}
