// Package application is the reactor driving the Connection state
// machine: HandleEvent is the single callback used for listener accept
// sockets, client sockets, and server sockets alike, generalizing
// connection.c's connection_cb across every state transition in
// the handshake-parsing contract.
package application

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"sniproxy/internal/buffer"
	"sniproxy/internal/domain"
	"sniproxy/internal/infrastructure/network"
	"sniproxy/internal/listener"
)

// peekWindow bounds how much of a buffer's pending bytes a protocol
// parser ever sees: one Ethernet MSS, per the handshake-parsing contract.
const peekWindow = 1460

// Reactor owns the registry of live connections and the map from every
// fd it has opened (listener, client, or server) back to the Connection
// responsible for it.
type Reactor struct {
	log       *slog.Logger
	loop      domain.EventLoop
	registry  *domain.Registry
	listeners map[int]*listener.Listener
	fdConn    map[int]*domain.Connection
}

func NewReactor(loop domain.EventLoop, log *slog.Logger) *Reactor {
	return &Reactor{
		log:       log,
		loop:      loop,
		registry:  domain.NewRegistry(),
		listeners: make(map[int]*listener.Listener),
		fdConn:    make(map[int]*domain.Connection),
	}
}

// AddListener registers l's accept socket with the reactor.
func (r *Reactor) AddListener(l *listener.Listener) error {
	r.listeners[l.FD] = l
	return r.loop.Register(l.FD, domain.EventRead)
}

// Run drives the event loop until it returns (normally only on Stop or a
// fatal reactor error).
func (r *Reactor) Run() error {
	return r.loop.Run(r)
}

// Stop asks the underlying event loop to return from Run.
func (r *Reactor) Stop() {
	r.loop.Stop()
}

// HandleEvent implements domain.EventHandler.
func (r *Reactor) HandleEvent(fd int, events domain.EventType) error {
	if l, ok := r.listeners[fd]; ok {
		r.accept(l)
		return nil
	}

	con, ok := r.fdConn[fd]
	if !ok {
		return nil // stale event for an fd we've already closed
	}
	isClient := con.Client.FD == fd

	// An async connect(2) completes (successfully or not) as a write
	// readiness event on the server fd; check for a pending error before
	// doing anything else, since the buffers may have nothing to send yet
	// and so would never otherwise surface the failure.
	if !isClient && con.State == domain.StateConnected && events&domain.EventWrite != 0 {
		if err := network.ConnectError(fd); err != nil {
			r.log.Warn("failed to open connection to backend", "backend", con.Server.Addr, "error", err)
			r.closeServer(con)
			events = 0
		}
	}

	if events != 0 {
		r.serviceHalf(con, isClient, events)
	}

	if isClient {
		r.advance(con)
	}

	r.closeDrainedHalves(con)

	if con.State == domain.StateClosed {
		r.destroy(con)
		return nil
	}

	r.rearm(con)
	r.registry.Activate(con)
	return nil
}

// accept handles one readable accept socket: accept, make non-blocking,
// build a Connection in StateAccepted, and arm its client watcher for
// READ (connection.c's accept_connection).
func (r *Reactor) accept(l *listener.Listener) {
	fd, peer, err := network.Accept(l.FD)
	if err != nil {
		if network.IsTemporaryAcceptError(err) {
			return
		}
		r.log.Warn("accept failed", "listener", l.Name(), "error", err)
		return
	}

	con := domain.NewConnection(l, buffer.DefaultCapacity)
	con.Client.FD = fd
	con.Client.Addr = peer
	con.State = domain.StateAccepted

	if err := r.loop.Register(fd, domain.EventRead); err != nil {
		r.log.Error("register client watcher failed", "fd", fd, "error", err)
		unix.Close(fd)
		return
	}

	r.fdConn[fd] = con
	r.registry.Insert(con)
	r.log.Info("accepted connection", "listener", l.Name(), "peer", peer, "fd", fd)
}

// serviceHalf performs the recv/send pass for whichever half (client or
// server) fd belongs to: receive into its own buffer, then send from the
// other half's buffer out through it.
func (r *Reactor) serviceHalf(con *domain.Connection, isClient bool, events domain.EventType) {
	var own, other *domain.Half
	var closeFn func(*domain.Connection)
	if isClient {
		own, other, closeFn = &con.Client, &con.Server, r.closeClient
	} else {
		own, other, closeFn = &con.Server, &con.Client, r.closeServer
	}

	if events&domain.EventRead != 0 {
		_, err := own.Buffer.Recv(own.FD)
		if err != nil {
			if err == io.EOF {
				r.log.Debug("peer closed connection", "fd", own.FD)
			} else {
				r.log.Warn("recv failed, closing half", "fd", own.FD, "error", err)
			}
			closeFn(con)
			return // the socket we'd send on is now closed
		}
	}

	if events&domain.EventWrite != 0 && other.Buffer.Len() > 0 {
		if _, err := other.Buffer.Send(own.FD); err != nil {
			r.log.Warn("send failed, closing half", "fd", own.FD, "error", err)
			closeFn(con)
		}
	}
}

// advance runs the ACCEPTED -> PARSED -> RESOLVED -> CONNECTED chain as
// far as the data on hand allows, all within one callback pass.
func (r *Reactor) advance(con *domain.Connection) {
	if con.State == domain.StateAccepted {
		r.parseRequest(con)
	}
	if con.State == domain.StateParsed {
		r.resolveBackend(con)
	}
	if con.State == domain.StateResolved {
		r.initiateConnect(con)
	}
}

// parseRequest invokes the listener's protocol parser against a peek of
// the client buffer. "Use the fallback" is modeled as an explicit
// transition straight to RESOLVED, never by leaving Hostname empty for
// resolveBackend to trip over.
func (r *Reactor) parseRequest(con *domain.Connection) {
	peekBuf := make([]byte, peekWindow)
	n := con.Client.Buffer.Peek(peekBuf)

	hostname, result := con.Listener.ParsePacket(peekBuf[:n])
	switch {
	case result == -1: // incomplete: wait for more bytes
		return
	case result == -2: // valid request, no hostname present
		r.log.Info("request did not include a hostname", "peer", con.Client.Addr)
		r.useFallbackOrClose(con)
		return
	case result < -2: // malformed
		r.log.Warn("unable to parse request", "peer", con.Client.Addr, "result", result)
		r.useFallbackOrClose(con)
		return
	}

	con.Hostname = hostname
	con.State = domain.StateParsed
}

func (r *Reactor) useFallbackOrClose(con *domain.Connection) {
	if fb, ok := con.Listener.FallbackAddress(); ok {
		con.Server.Addr = fb
		con.State = domain.StateResolved
		return
	}
	r.closeClient(con)
}

// resolveBackend looks up con.Hostname in the listener's table. A
// hostname-valued backend is rejected outright: backends are never
// actively resolved.
func (r *Reactor) resolveBackend(con *domain.Connection) {
	addr, ok := con.Listener.Lookup(con.Hostname)
	if !ok {
		if fb, hasFallback := con.Listener.FallbackAddress(); hasFallback {
			addr, ok = fb, true
		}
	}
	if !ok {
		r.log.Info("no route for hostname, closing", "hostname", con.Hostname, "peer", con.Client.Addr)
		r.closeClient(con)
		return
	}
	if addr.IsHostname() {
		r.log.Warn("backend is a hostname, not a literal address; DNS resolution is not supported",
			"hostname", con.Hostname, "backend", addr)
		r.closeClient(con)
		return
	}

	con.Server.Addr = addr
	con.State = domain.StateResolved
}

// initiateConnect opens the non-blocking connect to the resolved
// backend. An immediate failure (not EINPROGRESS) jumps straight to
// SERVER_CLOSED, allowing whatever the server buffer holds to drain to
// the client (in practice nothing has been received from the backend yet).
func (r *Reactor) initiateConnect(con *domain.Connection) {
	fd, err := network.Dial(con.Server.Addr)
	if err != nil {
		r.log.Warn("failed to open connection to backend", "backend", con.Server.Addr, "error", err)
		con.State = domain.StateServerClosed
		return
	}

	con.Server.FD = fd
	con.State = domain.StateConnected
	r.fdConn[fd] = con

	if err := r.loop.Register(fd, domain.EventWrite); err != nil {
		r.log.Error("register server watcher failed", "fd", fd, "error", err)
		unix.Close(fd)
		delete(r.fdConn, fd)
		con.Server.FD = -1
		con.State = domain.StateServerClosed
	}
}

// closeDrainedHalves closes the still-open half once its outbound buffer
// has flushed everything it received before the peer went away.
func (r *Reactor) closeDrainedHalves(con *domain.Connection) {
	if con.State == domain.StateServerClosed && con.Server.Buffer.Len() == 0 {
		r.closeClient(con)
	}
	if con.State == domain.StateClientClosed && con.Client.Buffer.Len() == 0 {
		r.closeServer(con)
	}
}

// closeClient closes the client socket, if open, and advances State
// according to which states close straight to CLOSED versus
// CLIENT_CLOSED (connection.c's close_client_socket).
func (r *Reactor) closeClient(con *domain.Connection) {
	if con.State == domain.StateClosed || con.State == domain.StateClientClosed {
		return
	}

	if con.Client.FD >= 0 {
		r.loop.Unregister(con.Client.FD)
		unix.Close(con.Client.FD)
		delete(r.fdConn, con.Client.FD)
		con.Client.FD = -1
	}

	switch con.State {
	case domain.StateServerClosed, domain.StateAccepted, domain.StateParsed, domain.StateResolved:
		con.State = domain.StateClosed
	default:
		con.State = domain.StateClientClosed
	}
}

// closeServer closes the server socket, if open, and advances State
// (connection.c's close_server_socket).
func (r *Reactor) closeServer(con *domain.Connection) {
	if con.State == domain.StateClosed || con.State == domain.StateServerClosed {
		return
	}

	if con.Server.FD >= 0 {
		r.loop.Unregister(con.Server.FD)
		unix.Close(con.Server.FD)
		delete(r.fdConn, con.Server.FD)
		con.Server.FD = -1
	}

	if con.State == domain.StateClientClosed {
		con.State = domain.StateClosed
	} else {
		con.State = domain.StateServerClosed
	}
}

// rearm recomputes each open half's watcher interest from its buffers'
// current room/pending state (the interest-management contract).
func (r *Reactor) rearm(con *domain.Connection) {
	if con.ClientOpen() {
		r.setInterest(con.Client.FD, con.Client.Buffer, con.Server.Buffer)
	}
	if con.ServerOpen() {
		r.setInterest(con.Server.FD, con.Server.Buffer, con.Client.Buffer)
	}
}

func (r *Reactor) setInterest(fd int, inbound, outbound *buffer.Buffer) {
	var want domain.EventType
	if inbound.Room() > 0 {
		want |= domain.EventRead
	}
	if outbound.Len() > 0 {
		want |= domain.EventWrite
	}
	if err := r.loop.Modify(fd, want); err != nil {
		r.log.Error("modify watcher failed", "fd", fd, "error", err)
	}
}

func (r *Reactor) destroy(con *domain.Connection) {
	r.registry.Remove(con)
	r.log.Debug("connection closed", "hostname", con.Hostname)
}

// Shutdown force-closes every live connection: the server half first (if
// open), then the client half, reaching CLOSED for each, then clears the
// registry. Safe to call after the loop has stopped dispatching events
// (connection.c's free_connections).
func (r *Reactor) Shutdown() {
	for _, con := range r.registry.All() {
		if con.ServerOpen() {
			r.closeServer(con)
		}
		if con.ClientOpen() {
			r.closeClient(con)
		}
		r.registry.Remove(con)
	}
}

// DumpConnections writes a snapshot of the registry to a fresh temp file
// and returns its path (connection.c's print_connections).
func (r *Reactor) DumpConnections() (string, error) {
	f, err := os.CreateTemp("", "sniproxy-connections-*")
	if err != nil {
		return "", fmt.Errorf("reactor: creating dump file: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "Running connections:")
	for _, con := range r.registry.All() {
		fmt.Fprintln(f, formatConnection(con))
	}

	r.log.Info("dumped connections", "path", f.Name())
	return f.Name(), nil
}

func formatConnection(con *domain.Connection) string {
	switch con.State {
	case domain.StateAccepted, domain.StateParsed, domain.StateResolved:
		return fmt.Sprintf("%-13s %s %d/%d\t-",
			con.State, con.Client.Addr, con.Client.Buffer.Len(), con.Client.Buffer.Cap())
	case domain.StateConnected:
		return fmt.Sprintf("CONNECTED     %s %d/%d\t%s %d/%d",
			con.Client.Addr, con.Client.Buffer.Len(), con.Client.Buffer.Cap(),
			con.Server.Addr, con.Server.Buffer.Len(), con.Server.Buffer.Cap())
	case domain.StateServerClosed:
		return fmt.Sprintf("SERVER_CLOSED %s %d/%d\t-",
			con.Client.Addr, con.Client.Buffer.Len(), con.Client.Buffer.Cap())
	case domain.StateClientClosed:
		return fmt.Sprintf("CLIENT_CLOSED -\t%s %d/%d",
			con.Server.Addr, con.Server.Buffer.Len(), con.Server.Buffer.Cap())
	default:
		return fmt.Sprintf("%-13s -\t-", con.State)
	}
}
