package domain

import (
	"container/list"

	"sniproxy/internal/address"
	"sniproxy/internal/buffer"
)

// State is one of the eight phases a Connection passes through. The
// client/server "open" predicates are derived from State rather than
// tracked as separate booleans, so the two can never diverge.
type State int

const (
	StateNew State = iota
	StateAccepted
	StateParsed
	StateResolved
	StateConnected
	StateServerClosed
	StateClientClosed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateAccepted:
		return "ACCEPTED"
	case StateParsed:
		return "PARSED"
	case StateResolved:
		return "RESOLVED"
	case StateConnected:
		return "CONNECTED"
	case StateServerClosed:
		return "SERVER_CLOSED"
	case StateClientClosed:
		return "CLIENT_CLOSED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Half is one side of a relayed flow: a socket descriptor, its peer
// address, and the buffer of bytes read from that socket and destined
// for the other half.
type Half struct {
	FD     int
	Addr   address.Address
	Buffer *buffer.Buffer
}

// Listener is the capability a Connection needs from the listener that
// accepted it: a protocol parser and a routing table. Defined here as an
// interface (rather than a pointer to a concrete listener type) so the
// domain package has no dependency on the listener package -- a weak
// reference expressed as a capability instead of a concrete pointer.
type Listener interface {
	Name() string
	ParsePacket(buf []byte) (hostname string, result int)
	Lookup(hostname string) (address.Address, bool)
	FallbackAddress() (address.Address, bool)
}

// Connection is the per-flow state machine: it owns both socket halves,
// their buffers, and the hostname extracted from the client's handshake.
// It advances through State as reactor events arrive; see
// internal/application.Reactor for the transition logic.
type Connection struct {
	State    State
	Client   Half
	Server   Half
	Hostname string
	Listener Listener

	elem *list.Element // this connection's position in a Registry, if any
}

// NewConnection allocates a Connection in StateNew with both buffers
// ready and both descriptors marked closed (-1). The caller fills in
// Client.FD/Addr and advances State to StateAccepted once accept(2)
// succeeds.
func NewConnection(l Listener, bufferCapacity int) *Connection {
	return &Connection{
		State:    StateNew,
		Listener: l,
		Client:   Half{FD: -1, Buffer: buffer.New(bufferCapacity)},
		Server:   Half{FD: -1, Buffer: buffer.New(bufferCapacity)},
	}
}

// ClientOpen reports whether the client socket is open in this state.
func (c *Connection) ClientOpen() bool {
	switch c.State {
	case StateAccepted, StateParsed, StateResolved, StateConnected, StateServerClosed:
		return true
	default:
		return false
	}
}

// ServerOpen reports whether the server socket is open in this state.
func (c *Connection) ServerOpen() bool {
	switch c.State {
	case StateConnected, StateClientClosed:
		return true
	default:
		return false
	}
}

// Registry is an ordered collection of live Connections, owned by the
// Reactor that drives them. New connections go to the head; the just-serviced
// connection is moved back to the head after each event (Activate),
// leaving the tail as a least-recently-active ordering suitable for an
// idle scan. Backed by container/list for O(1) insert/move/remove --
// the Go equivalent of the source's intrusive TAILQ.
type Registry struct {
	l *list.List
}

func NewRegistry() *Registry {
	return &Registry{l: list.New()}
}

// Insert adds c at the head of the registry. c must not already be in a
// registry.
func (r *Registry) Insert(c *Connection) {
	c.elem = r.l.PushFront(c)
}

// Activate moves c to the head, marking it most-recently-active.
func (r *Registry) Activate(c *Connection) {
	if c.elem != nil {
		r.l.MoveToFront(c.elem)
	}
}

// Remove takes c out of the registry. A no-op if c isn't in one.
func (r *Registry) Remove(c *Connection) {
	if c.elem != nil {
		r.l.Remove(c.elem)
		c.elem = nil
	}
}

func (r *Registry) Len() int { return r.l.Len() }

// All returns the live connections, head (most active) to tail (least
// active).
func (r *Registry) All() []*Connection {
	out := make([]*Connection, 0, r.l.Len())
	for e := r.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Connection))
	}
	return out
}
