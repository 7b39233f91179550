package table

import (
	"testing"

	"sniproxy/internal/address"
)

func TestLookupFirstMatch(t *testing.T) {
	tbl := New("main")
	tbl.Add("a.example.com", address.Parse("10.0.0.1", 443))
	tbl.Add("a.example.com", address.Parse("10.0.0.2", 443))

	addr, ok := tbl.Lookup("a.example.com")
	if !ok {
		t.Fatal("Lookup returned false for a known hostname")
	}
	if addr.String() != "10.0.0.1:443" {
		t.Errorf("Lookup returned %s, want first-added entry 10.0.0.1:443", addr)
	}
}

func TestLookupCaseInsensitiveAndTrailingDot(t *testing.T) {
	tbl := New("main")
	tbl.Add("Example.com", address.Parse("10.0.0.1", 443))

	tests := []string{"example.com", "EXAMPLE.COM", "example.com.", "Example.Com"}
	for _, host := range tests {
		if _, ok := tbl.Lookup(host); !ok {
			t.Errorf("Lookup(%q) = false, want true", host)
		}
	}
}

func TestLookupMiss(t *testing.T) {
	tbl := New("main")
	tbl.Add("example.com", address.Parse("10.0.0.1", 443))

	if _, ok := tbl.Lookup("other.com"); ok {
		t.Error("Lookup matched an unconfigured hostname")
	}
}

func TestLookupPopulatesCache(t *testing.T) {
	tbl := New("main")
	tbl.Add("example.com", address.Parse("10.0.0.1", 443))

	tbl.Lookup("example.com")
	if _, ok := tbl.cache.Get("example.com"); !ok {
		t.Error("Lookup did not populate the LRU cache")
	}
}
