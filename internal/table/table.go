// Package table implements the static hostname-to-backend routing map
// consulted once a Connection reaches PARSED.
package table

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/miekg/dns"

	"sniproxy/internal/address"
)

// cacheSize bounds the LRU of recent hostname lookups placed in front of
// the linear backend scan, so a hot virtual host doesn't re-walk the
// table on every new connection.
const cacheSize = 4096

// Backend is one routing entry: a hostname pattern and the address it
// resolves to.
type Backend struct {
	Pattern string
	Address address.Address
}

// Table is an ordered sequence of Backends. Lookup returns the first
// entry whose pattern matches, case-insensitively -- a deterministic first-match contract.
type Table struct {
	Name     string
	Backends []Backend

	cache *lru.Cache
}

func New(name string) *Table {
	cache, _ := lru.New(cacheSize) // only errors when size <= 0
	return &Table{Name: name, cache: cache}
}

// Add appends a backend entry. hostnamePattern is canonicalized the same
// way Lookup canonicalizes its argument, so later lookups compare
// correctly.
func (t *Table) Add(hostnamePattern string, addr address.Address) {
	t.Backends = append(t.Backends, Backend{
		Pattern: canonicalize(hostnamePattern),
		Address: addr,
	})
}

// Lookup returns the backend address for hostname, or (_, false) if no
// entry matches.
func (t *Table) Lookup(hostname string) (address.Address, bool) {
	key := canonicalize(hostname)

	if v, ok := t.cache.Get(key); ok {
		return v.(address.Address), true
	}

	for _, b := range t.Backends {
		if b.Pattern == key {
			t.cache.Add(key, b.Address)
			return b.Address, true
		}
	}
	return address.Address{}, false
}

// canonicalize folds a hostname the way DNS name comparison does:
// lower-cased, no trailing root dot.
func canonicalize(hostname string) string {
	name := dns.CanonicalName(hostname)
	if len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	return name
}
