package server

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// createReuseAddrListener creates a TCP listener with SO_REUSEADDR enabled
// for fast restarts without waiting for TIME_WAIT
func createReuseAddrListener(ctx context.Context, network, address string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockOptErr error
			err := c.Control(func(fd uintptr) {
				sockOptErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockOptErr
		},
	}
	return lc.Listen(ctx, network, address)
}
