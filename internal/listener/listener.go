// Package listener models a bound listening socket: its accept-ready
// file descriptor, the protocol parser it binds at configuration time,
// an optional fallback backend, and a reference to a routing Table.
package listener

import (
	"sniproxy/internal/address"
	"sniproxy/internal/config"
	"sniproxy/internal/infrastructure/network"
	"sniproxy/internal/parser"
	"sniproxy/internal/table"
)

// Listener implements domain.Listener; kept in its own package (rather
// than domain) so domain has no dependency on socket/parser/table
// concretions -- only the capability interface it declares.
type Listener struct {
	name     string
	FD       int
	Addr     address.Address
	Protocol config.Protocol

	parser parser.Protocol
	table  *table.Table

	fallback    address.Address
	hasFallback bool
}

// New binds addr and constructs a Listener using the parser implied by
// proto. tbl may be nil for a table-less listener, which routes every
// connection to the fallback address or closes it.
func New(name string, addr address.Address, proto config.Protocol, tbl *table.Table) (*Listener, error) {
	fd, err := network.Listen(addr)
	if err != nil {
		return nil, err
	}

	var p parser.Protocol
	if proto == config.ProtocolHTTP {
		p = parser.HTTP{}
	} else {
		p = parser.TLS{}
	}

	return &Listener{
		name:     name,
		FD:       fd,
		Addr:     addr,
		Protocol: proto,
		parser:   p,
		table:    tbl,
	}, nil
}

func (l *Listener) Name() string { return l.name }

// SetFallback configures the backend used when a request's hostname
// extraction yields no name, or when no table entry matches.
func (l *Listener) SetFallback(addr address.Address) {
	l.fallback, l.hasFallback = addr, true
}

// ParsePacket implements domain.Listener.
func (l *Listener) ParsePacket(buf []byte) (string, int) {
	hostname, result := l.parser.Parse(buf)
	return hostname, int(result)
}

// Lookup implements domain.Listener.
func (l *Listener) Lookup(hostname string) (address.Address, bool) {
	if l.table == nil {
		return address.Address{}, false
	}
	return l.table.Lookup(hostname)
}

// FallbackAddress implements domain.Listener.
func (l *Listener) FallbackAddress() (address.Address, bool) {
	return l.fallback, l.hasFallback
}
