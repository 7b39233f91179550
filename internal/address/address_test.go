package address

import (
	"net"
	"testing"

	"golang.org/x/sys/unix"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		wantKind Kind
		wantStr  string
	}{
		{"ipv4 literal", "192.168.1.1", 443, KindIPv4, "192.168.1.1:443"},
		{"ipv6 literal", "2001:db8::1", 443, KindIPv6, "[2001:db8::1]:443"},
		{"unix socket", "unix:/var/run/sniproxy.sock", 0, KindUnix, "unix:/var/run/sniproxy.sock"},
		{"hostname", "backend.example.com", 8080, KindHostname, "backend.example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := Parse(tt.host, tt.port)
			if addr.Kind() != tt.wantKind {
				t.Fatalf("Kind() = %v, want %v", addr.Kind(), tt.wantKind)
			}
			if got := addr.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestIsHostname(t *testing.T) {
	if Parse("10.0.0.1", 443).IsHostname() {
		t.Error("IPv4 literal reported as hostname")
	}
	if !Parse("example.com", 443).IsHostname() {
		t.Error("hostname not reported as hostname")
	}
}

func TestSockaddrRoundTrip(t *testing.T) {
	addr := IPv4(net.ParseIP("127.0.0.1"), 8443)
	sa, err := addr.Sockaddr()
	if err != nil {
		t.Fatalf("Sockaddr() error: %v", err)
	}
	inet4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("Sockaddr() returned %T, want *unix.SockaddrInet4", sa)
	}
	if inet4.Port != 8443 {
		t.Errorf("port = %d, want 8443", inet4.Port)
	}
	if net.IP(inet4.Addr[:]).String() != "127.0.0.1" {
		t.Errorf("addr = %s, want 127.0.0.1", net.IP(inet4.Addr[:]))
	}
}

func TestHostnameSockaddrFails(t *testing.T) {
	_, err := Hostname("example.com", 443).Sockaddr()
	if err == nil {
		t.Fatal("expected error converting hostname to sockaddr")
	}
}

func TestFromSockaddr(t *testing.T) {
	sa := &unix.SockaddrInet4{Port: 9000, Addr: [4]byte{10, 0, 0, 5}}
	addr := FromSockaddr(sa)
	if addr.Kind() != KindIPv4 {
		t.Fatalf("Kind() = %v, want KindIPv4", addr.Kind())
	}
	if addr.String() != "10.0.0.5:9000" {
		t.Errorf("String() = %q, want 10.0.0.5:9000", addr.String())
	}
}
