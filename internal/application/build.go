package application

import (
	"fmt"
	"log/slog"

	"sniproxy/internal/address"
	"sniproxy/internal/config"
	"sniproxy/internal/domain"
	"sniproxy/internal/listener"
	"sniproxy/internal/table"
)

// Build constructs a Reactor from a parsed Config: one Table per table
// stanza, one Listener per listener stanza (bound and registered), wired
// to whichever table it names.
func Build(cfg *config.Config, loop domain.EventLoop, log *slog.Logger) (*Reactor, error) {
	tables := make(map[string]*table.Table, len(cfg.Tables))
	for _, tc := range cfg.Tables {
		t := table.New(tc.Name)
		for _, bc := range tc.Backends {
			t.Add(bc.Hostname, address.Parse(bc.Address, bc.Port))
		}
		tables[tc.Name] = t
	}

	r := NewReactor(loop, log)

	for _, lc := range cfg.Listeners {
		var tbl *table.Table
		if lc.Table != "" {
			var ok bool
			tbl, ok = tables[lc.Table]
			if !ok {
				return nil, fmt.Errorf("application: listener %s:%d references unknown table %q", lc.Address, lc.Port, lc.Table)
			}
		}

		addr := address.Parse(lc.Address, lc.Port)
		l, err := listener.New(fmt.Sprintf("%s:%d", lc.Address, lc.Port), addr, lc.Protocol, tbl)
		if err != nil {
			return nil, fmt.Errorf("application: binding listener %s:%d: %w", lc.Address, lc.Port, err)
		}

		if lc.FallbackAddress != "" {
			l.SetFallback(address.Parse(lc.FallbackAddress, lc.FallbackPort))
		}

		if err := r.AddListener(l); err != nil {
			return nil, fmt.Errorf("application: registering listener %s: %w", l.Name(), err)
		}
		log.Info("listener bound", "name", l.Name(), "protocol", lc.Protocol, "table", lc.Table)
	}

	return r, nil
}
