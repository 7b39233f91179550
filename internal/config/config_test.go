package config

import "testing"

func TestParseFullConfig(t *testing.T) {
	text := `
		username nobody;

		table backends {
			www.example.com 10.0.0.1 8443;
			api.example.com 10.0.0.2;
		}

		listener 0.0.0.0 443 {
			protocol tls;
			table backends;
			fallback 10.0.0.9 8443;
		}

		listener 0.0.0.0 80 {
			protocol http;
			table backends;
		}
	`

	cfg, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Username != "nobody" {
		t.Errorf("Username = %q, want %q", cfg.Username, "nobody")
	}

	if len(cfg.Tables) != 1 || len(cfg.Tables[0].Backends) != 2 {
		t.Fatalf("unexpected table shape: %+v", cfg.Tables)
	}
	if cfg.Tables[0].Backends[1].Port != 0 {
		t.Errorf("expected default port 0 for backend without explicit port, got %d", cfg.Tables[0].Backends[1].Port)
	}

	if len(cfg.Listeners) != 2 {
		t.Fatalf("expected 2 listeners, got %d", len(cfg.Listeners))
	}

	tls := cfg.Listeners[0]
	if tls.Protocol != ProtocolTLS {
		t.Errorf("listener 0 protocol = %v, want ProtocolTLS", tls.Protocol)
	}
	if tls.FallbackAddress != "10.0.0.9" || tls.FallbackPort != 8443 {
		t.Errorf("listener 0 fallback = %s:%d, want 10.0.0.9:8443", tls.FallbackAddress, tls.FallbackPort)
	}

	http := cfg.Listeners[1]
	if http.Protocol != ProtocolHTTP {
		t.Errorf("listener 1 protocol = %v, want ProtocolHTTP", http.Protocol)
	}
	if http.FallbackAddress != "" {
		t.Errorf("listener 1 should have no fallback, got %q", http.FallbackAddress)
	}
}

func TestParseDefaultsProtocolToTLS(t *testing.T) {
	cfg, err := Parse("listener 0.0.0.0 443 { table backends; }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listeners[0].Protocol != ProtocolTLS {
		t.Errorf("Protocol = %v, want ProtocolTLS default", cfg.Listeners[0].Protocol)
	}
}

func TestParseUnknownDirectiveErrors(t *testing.T) {
	_, err := Parse("listener 0.0.0.0 443 { bogus foo; }")
	if err == nil {
		t.Fatal("expected an error for an unknown listener directive")
	}
}

func TestParseMissingSemicolonErrors(t *testing.T) {
	_, err := Parse("username nobody")
	if err == nil {
		t.Fatal("expected an error for a missing semicolon")
	}
}

func TestParseCommentsAreIgnored(t *testing.T) {
	text := `
		# this is a comment
		username nobody; # trailing comment
	`
	cfg, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Username != "nobody" {
		t.Errorf("Username = %q, want %q", cfg.Username, "nobody")
	}
}
