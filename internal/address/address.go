// Package address models the tagged addresses sniproxy's listener and
// table stanzas accept: a Unix socket path, an IPv4 or IPv6 literal, or
// (rejected at route time) a bare hostname.
package address

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/sys/unix"
)

type Kind int

const (
	KindIPv4 Kind = iota
	KindIPv6
	KindUnix
	KindHostname
)

// Address is an immutable value: one of a Unix path, an IPv4/IPv6
// literal + port, or an unresolved hostname + port.
type Address struct {
	kind     Kind
	ip       net.IP
	port     int
	path     string
	hostname string
}

func IPv4(ip net.IP, port int) Address {
	return Address{kind: KindIPv4, ip: ip.To4(), port: port}
}

func IPv6(ip net.IP, port int) Address {
	return Address{kind: KindIPv6, ip: ip.To16(), port: port}
}

func Unix(path string) Address {
	return Address{kind: KindUnix, path: path}
}

func Hostname(name string, port int) Address {
	return Address{kind: KindHostname, hostname: name, port: port}
}

// Parse turns a literal address string plus port into an Address. "unix:"
// prefixed strings become Unix addresses; strings that parse as an IP
// literal become IPv4/IPv6; anything else is a Hostname, which callers
// must reject for backends (active DNS resolution is out of scope) but
// may accept for listener bind addresses resolved elsewhere.
func Parse(host string, port int) Address {
	if path, ok := strings.CutPrefix(host, "unix:"); ok {
		return Unix(path)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return Hostname(host, port)
	}
	if v4 := ip.To4(); v4 != nil {
		return IPv4(v4, port)
	}
	return IPv6(ip, port)
}

// FromSockaddr converts a unix.Sockaddr (as accept(2) returns) into an
// Address.
func FromSockaddr(sa unix.Sockaddr) Address {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return IPv4(net.IP(v.Addr[:]), v.Port)
	case *unix.SockaddrInet6:
		return IPv6(net.IP(v.Addr[:]), v.Port)
	case *unix.SockaddrUnix:
		return Unix(v.Name)
	default:
		return Address{}
	}
}

func (a Address) Kind() Kind { return a.kind }
func (a Address) Port() int  { return a.port }

// IsHostname reports whether this address names a host rather than a
// literal -- the condition that makes a backend entry unresolvable per
// backends are never actively resolved.
func (a Address) IsHostname() bool { return a.kind == KindHostname }

// IsSockaddr reports whether this address converts directly to a
// unix.Sockaddr without resolution.
func (a Address) IsSockaddr() bool { return a.kind != KindHostname }

// Family returns the socket address family (AF_INET/AF_INET6/AF_UNIX)
// appropriate for this address. Hostname addresses default to AF_INET;
// callers must check IsHostname first.
func (a Address) Family() int {
	switch a.kind {
	case KindIPv6:
		return unix.AF_INET6
	case KindUnix:
		return unix.AF_UNIX
	default:
		return unix.AF_INET
	}
}

// Sockaddr converts to the unix.Sockaddr used by bind(2)/connect(2).
func (a Address) Sockaddr() (unix.Sockaddr, error) {
	switch a.kind {
	case KindIPv4:
		sa := &unix.SockaddrInet4{Port: a.port}
		copy(sa.Addr[:], a.ip.To4())
		return sa, nil
	case KindIPv6:
		sa := &unix.SockaddrInet6{Port: a.port}
		copy(sa.Addr[:], a.ip.To16())
		return sa, nil
	case KindUnix:
		return &unix.SockaddrUnix{Name: a.path}, nil
	default:
		return nil, fmt.Errorf("address: %q has no literal sockaddr", a.hostname)
	}
}

// String renders the address the way the config dumper and the debug
// connection dump both want it: "unix:<path>", "host:port" for IPv4, and
// "[host]:port" for IPv6.
func (a Address) String() string {
	switch a.kind {
	case KindUnix:
		return "unix:" + a.path
	case KindIPv4:
		return fmt.Sprintf("%s:%d", a.ip.String(), a.port)
	case KindIPv6:
		return fmt.Sprintf("[%s]:%d", a.ip.String(), a.port)
	case KindHostname:
		return fmt.Sprintf("%s:%d", a.hostname, a.port)
	default:
		return "-"
	}
}
