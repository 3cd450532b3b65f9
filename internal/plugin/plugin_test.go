package plugin

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Globidev/globibot-rs/internal/framing"
	"github.com/Globidev/globibot-rs/internal/rpcclient"
	"github.com/Globidev/globibot-rs/internal/transport"
	"github.com/Globidev/globibot-rs/internal/wire"
)

// pipeTransport hands back one preconnected net.Conn, enough to exercise
// plugin.Connect without a real listener.
type pipeTransport struct {
	conn net.Conn
	err  error
}

func (p pipeTransport) Connect(ctx context.Context) (net.Conn, error) { return p.conn, p.err }
func (p pipeTransport) Listen(ctx context.Context) (<-chan transport.Accept, error) {
	panic("not used by these tests")
}
func (p pipeTransport) Addr() string { return "pipe" }

func TestConnectWritesSubscribeRequestAndStreamsEvents(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	hsFramer := framing.New[wire.SubscribeRequest, wire.Event](server)
	go func() {
		req, err := hsFramer.ReadFrame()
		if err != nil {
			return
		}
		assert.Equal(t, "my-plugin", req.ID)
		assert.True(t, req.Events.Contains(wire.EventTypeMessageCreate))
		hsFramer.WriteFrame(wire.NewMessageCreate(wire.Message{ID: "1", Content: "hi"}))
	}()

	session, err := Connect(context.Background(), "my-plugin", Endpoints{
		Events:     pipeTransport{conn: client},
		EventTypes: wire.NewEventTypeSet(wire.EventTypeMessageCreate),
	})
	require.NoError(t, err)
	assert.Nil(t, session.RPC)

	select {
	case event := <-session.Events:
		require.NotNil(t, event.MessageCreate)
		assert.Equal(t, "hi", event.MessageCreate.Message.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestConnectRequiresEventsEndpoint(t *testing.T) {
	_, err := Connect(context.Background(), "no-events", Endpoints{})
	assert.Error(t, err)
}

func TestRunBoundsConcurrencyAndSurvivesHandlerErrors(t *testing.T) {
	events := make(chan wire.Event, 32)
	session := &Session{ID: "p", Events: events}

	const total = 30
	for i := 0; i < total; i++ {
		events <- wire.NewMessageCreate(wire.Message{ID: "x", Content: "c"})
	}
	close(events)

	var (
		mu          sync.Mutex
		inFlight    int
		maxInFlight int
	)
	var processed int32

	handle := func(ctx context.Context, rpc *rpcclient.Client, event wire.Event) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&processed, 1)

		mu.Lock()
		inFlight--
		mu.Unlock()

		// Every other event reports failure; Run must keep draining anyway.
		if atomic.LoadInt32(&processed)%2 == 0 {
			return assert.AnError
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), session, handle, zerolog.Nop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run never drained the event channel")
	}

	assert.EqualValues(t, total, processed)
	assert.LessOrEqual(t, maxInFlight, MaxInFlightHandlers)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	events := make(chan wire.Event)
	session := &Session{ID: "p", Events: events}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, session, func(ctx context.Context, rpc *rpcclient.Client, event wire.Event) error {
			return nil
		}, zerolog.Nop())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
