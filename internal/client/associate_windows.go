//go:build windows

package client

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/windows"
)

// connectUDP performs connect on the bound socket so the stack fixes its peer.
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
		connectErr = windows.Connect(windows.Handle(fd), sa)
	}); err != nil {
		return err
	}
	if connectErr != nil {
		return os.NewSyscallError("connect", connectErr)
	}
	return nil
}

func sockaddr(remote *net.UDPAddr) (windows.Sockaddr, error) {
	if ip4 := remote.IP.To4(); ip4 != nil {
		sa := &windows.SockaddrInet4{Port: remote.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}

	ip6 := remote.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("invalid remote address %q", remote.IP)
	}
	sa := &windows.SockaddrInet6{Port: remote.Port}
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
