// Package plugin is the connector a plugin process links against: it dials
// the events and (optionally) RPC endpoints the gateway exposes, performs
// both handshakes, and exposes the result as a Session that a plugin's event
// handler runs against.
package plugin

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Globidev/globibot-rs/internal/framing"
	"github.com/Globidev/globibot-rs/internal/rpcclient"
	"github.com/Globidev/globibot-rs/internal/transport"
	"github.com/Globidev/globibot-rs/internal/wire"
)

// NoCapability names the absence of an endpoint a plugin never bound. It has
// no behavior; it exists so callers can talk about "this plugin has no RPC
// capability" without reaching for a bare nil check. Session still uses nil
// to represent the same thing internally — Go has no type-level way to
// forbid touching an unbound field, unlike the const-generic encoding this
// connector is grounded on.
type NoCapability struct{}

// Endpoints describes which transports a plugin connects over. Events is
// mandatory: every plugin consumes the event stream. RPC may be left nil for
// a plugin with no need to call back into the platform (NoCapability).
type Endpoints struct {
	RPC        transport.Transport
	Events     transport.Transport
	EventTypes wire.EventTypeSet
}

// Session is a connected plugin: its identity, its event stream, and an
// optional RPC stub. RPC is nil when Endpoints.RPC was nil.
type Session struct {
	ID     string
	RPC    *rpcclient.Client
	Events <-chan wire.Event
}

// Connect dials every bound endpoint and performs its handshake, returning a
// ready Session. The event stream is read by a background goroutine that
// closes the returned channel when the connection ends; Events.Connect
// failing, or the subscribe handshake failing to write, both fail Connect
// outright since a plugin with no event stream has nothing to run.
func Connect(ctx context.Context, id string, endpoints Endpoints) (*Session, error) {
	if endpoints.Events == nil {
		return nil, fmt.Errorf("plugin: %s declares no events endpoint", id)
	}

	eventsConn, err := endpoints.Events.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("plugin: connecting events transport: %w", err)
	}

	eventsFramer := framing.New[wire.Event, wire.SubscribeRequest](eventsConn)
	if err := eventsFramer.WriteFrame(wire.SubscribeRequest{ID: id, Events: endpoints.EventTypes}); err != nil {
		eventsConn.Close()
		return nil, fmt.Errorf("plugin: writing subscribe request: %w", err)
	}

	events := make(chan wire.Event)
	go streamEvents(eventsConn, eventsFramer, events)

	session := &Session{ID: id, Events: events}

	if endpoints.RPC != nil {
		rpcConn, err := endpoints.RPC.Connect(ctx)
		if err != nil {
			eventsConn.Close()
			return nil, fmt.Errorf("plugin: connecting rpc transport: %w", err)
		}
		client, err := rpcclient.Connect(rpcConn, id)
		if err != nil {
			eventsConn.Close()
			rpcConn.Close()
			return nil, fmt.Errorf("plugin: rpc handshake: %w", err)
		}
		session.RPC = client
	}

	return session, nil
}

func streamEvents(conn io.Closer, framer *framing.Framer[wire.Event, wire.SubscribeRequest], out chan<- wire.Event) {
	defer close(out)
	defer conn.Close()
	for {
		event, err := framer.ReadFrame()
		if err != nil {
			return
		}
		out <- event
	}
}

// MaxInFlightHandlers bounds how many events Run processes concurrently,
// mirroring a bounded concurrent-for-each over the event stream.
const MaxInFlightHandlers = 10

// Handler processes one event, optionally calling back into the platform
// through rpc (nil if the session has no RPC capability). An error is
// logged and never stops the stream.
type Handler func(ctx context.Context, rpc *rpcclient.Client, event wire.Event) error

// Run drains session.Events until it closes or ctx is done, invoking handle
// for each event with at most MaxInFlightHandlers running concurrently.
func Run(ctx context.Context, session *Session, handle Handler, log zerolog.Logger) {
	sem := make(chan struct{}, MaxInFlightHandlers)
	var wg sync.WaitGroup

	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				wg.Wait()
				return
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(event wire.Event) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := handle(ctx, session.RPC, event); err != nil {
					log.Warn().Str("plugin_id", session.ID).Err(err).Msg("event handler failed")
				}
			}(event)
		case <-ctx.Done():
			wg.Wait()
			return
		}
	}
}
