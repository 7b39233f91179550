// Package network provides the non-blocking socket primitives the
// reactor drives: binding a listener, accepting connections, and dialing
// a backend. Supports IPv4, IPv6, and Unix domain sockets, the three
// address families the listener/table grammar allows.
package network

import (
	"fmt"

	"golang.org/x/sys/unix"

	"sniproxy/internal/address"
)

const listenBacklog = 128

// Listen creates a bound, non-blocking, listening socket for addr.
func Listen(addr address.Address) (int, error) {
	fd, err := unix.Socket(addr.Family(), unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("network: socket: %w", err)
	}

	if addr.Family() != unix.AF_UNIX {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("network: SO_REUSEADDR: %w", err)
		}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("network: set non-blocking: %w", err)
	}

	sa, err := addr.Sockaddr()
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("network: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("network: listen %s: %w", addr, err)
	}
	return fd, nil
}

// Accept accepts one pending connection on listenFD, returning a
// non-blocking client socket and the peer's address.
func Accept(listenFD int) (int, address.Address, error) {
	nfd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, address.Address{}, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, address.Address{}, fmt.Errorf("network: set non-blocking: %w", err)
	}
	return nfd, address.FromSockaddr(sa), nil
}

// Dial starts a non-blocking connect to addr. EINPROGRESS is not treated
// as an error: the caller arms a write watcher and confirms completion
// with ConnectError once it fires.
func Dial(addr address.Address) (int, error) {
	fd, err := unix.Socket(addr.Family(), unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("network: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("network: set non-blocking: %w", err)
	}

	sa, err := addr.Sockaddr()
	if err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// ConnectError returns the pending error on fd, if any, after a
// connect(2)'s write-readiness event fires -- the only reliable way to
// detect an asynchronous connect failure such as ECONNREFUSED.
func ConnectError(fd int) error {
	val, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if val != 0 {
		return unix.Errno(val)
	}
	return nil
}

// IsTemporaryAcceptError reports whether err from Accept should simply be
// retried on the next readiness event rather than logged as a failure.
func IsTemporaryAcceptError(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK ||
		err == unix.EINTR || err == unix.ECONNABORTED
}
