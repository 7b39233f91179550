// Package config parses the sniproxy grammar: three top-level stanzas
// (username, listener, table), consumed by internal/application.Build to
// construct listeners and routing tables. It is a pure
// bytes-in/structured-config-out collaborator -- the core never parses
// configuration itself.
package config

import (
	"fmt"
	"os"
)

// Protocol selects which parser.Protocol a Listener binds.
type Protocol int

const (
	ProtocolTLS Protocol = iota
	ProtocolHTTP
)

func (p Protocol) String() string {
	if p == ProtocolHTTP {
		return "http"
	}
	return "tls"
}

type ListenerConfig struct {
	Address  string
	Port     int
	Protocol Protocol
	Table    string

	FallbackAddress string // empty if this listener has no fallback
	FallbackPort    int
}

type BackendConfig struct {
	Hostname string
	Address  string
	Port     int
}

type TableConfig struct {
	Name     string
	Backends []BackendConfig
}

// Config is the parsed form of a sniproxy configuration file.
type Config struct {
	Username  string
	Listeners []ListenerConfig
	Tables    []TableConfig
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(string(data))
}

// Reload re-parses the file at path and returns a fresh Config. It never
// mutates a Config already in use and builds no Tables or Listeners
// itself. The SIGHUP handler in cmd/sniproxy only validates and logs the
// result; running listeners keep the routing tables they were built with.
func Reload(path string) (*Config, error) {
	return Load(path)
}
