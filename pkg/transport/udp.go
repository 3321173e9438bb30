// Package transport constructs the two UDP endpoints of a server
// process and provides the encode-and-send helpers used by every
// component that talks on the wire.
package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/polenoz/ringchat/pkg/wire"
)

// ListenDiscovery opens the shared discovery socket. The port is shared
// by every server and client on the broadcast domain, so the socket is
// opened with SO_REUSEADDR, and SO_BROADCAST is set so the same socket
// can emit broadcast announcements.
func ListenDiscovery(port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseAndBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind discovery port %d: %w", port, err)
	}
	return pc.(*net.UDPConn), nil
}

// ListenService opens the per-process service socket.
func ListenService(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind service port %d: %w", port, err)
	}
	return conn, nil
}

func reuseAndBroadcast(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}

// BroadcastAddr returns the limited-broadcast destination for the
// given discovery port.
func BroadcastAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: port}
}

// Send encodes d and writes it to addr. Sends are best-effort; the
// caller decides whether a failure is worth more than a log line.
func Send(conn *net.UDPConn, addr *net.UDPAddr, d wire.Datagram) error {
	data, err := wire.Encode(d)
	if err != nil {
		return err
	}
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		return err
	}
	return nil
}
