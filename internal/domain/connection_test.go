package domain

import (
	"testing"

	"sniproxy/internal/address"
)

type fakeListener struct{}

func (fakeListener) Name() string                                 { return "fake" }
func (fakeListener) ParsePacket(buf []byte) (string, int)         { return "", -1 }
func (fakeListener) Lookup(hostname string) (address.Address, bool) {
	return address.Address{}, false
}
func (fakeListener) FallbackAddress() (address.Address, bool) { return address.Address{}, false }

func TestConnectionOpenPredicates(t *testing.T) {
	tests := []struct {
		state       State
		clientOpen  bool
		serverOpen  bool
	}{
		{StateNew, false, false},
		{StateAccepted, true, false},
		{StateParsed, true, false},
		{StateResolved, true, false},
		{StateConnected, true, true},
		{StateServerClosed, true, false},
		{StateClientClosed, false, true},
		{StateClosed, false, false},
	}

	for _, tt := range tests {
		con := NewConnection(fakeListener{}, 1024)
		con.State = tt.state
		if got := con.ClientOpen(); got != tt.clientOpen {
			t.Errorf("state %v: ClientOpen() = %v, want %v", tt.state, got, tt.clientOpen)
		}
		if got := con.ServerOpen(); got != tt.serverOpen {
			t.Errorf("state %v: ServerOpen() = %v, want %v", tt.state, got, tt.serverOpen)
		}
	}
}

func TestRegistryOrdering(t *testing.T) {
	r := NewRegistry()
	a := NewConnection(fakeListener{}, 64)
	b := NewConnection(fakeListener{}, 64)
	c := NewConnection(fakeListener{}, 64)

	r.Insert(a)
	r.Insert(b)
	r.Insert(c)

	all := r.All()
	if len(all) != 3 || all[0] != c || all[1] != b || all[2] != a {
		t.Fatalf("unexpected insertion order: %+v", all)
	}

	r.Activate(a)
	all = r.All()
	if all[0] != a {
		t.Errorf("Activate did not move connection to front: %+v", all)
	}

	r.Remove(b)
	if r.Len() != 2 {
		t.Errorf("Len() = %d after Remove, want 2", r.Len())
	}
	for _, con := range r.All() {
		if con == b {
			t.Error("removed connection still present in registry")
		}
	}
}

func TestStateString(t *testing.T) {
	if StateConnected.String() != "CONNECTED" {
		t.Errorf("String() = %q, want CONNECTED", StateConnected.String())
	}
}
