package rpcserver

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Globidev/globibot-rs/internal/framing"
	"github.com/Globidev/globibot-rs/internal/platform/platformtest"
	"github.com/Globidev/globibot-rs/internal/typing"
	"github.com/Globidev/globibot-rs/internal/wire"
)

type testClient struct {
	framer *framing.Framer[wire.ResponseEnvelope, wire.RequestEnvelope]
}

func dialTestServer(t *testing.T, s *Server) (*testClient, func()) {
	t.Helper()
	server, client := net.Pipe()

	go s.Serve(server)

	hsFramer := framing.New[wire.Empty, wire.RpcHandshake](client)
	require.NoError(t, hsFramer.WriteFrame(wire.RpcHandshake{ID: "test-plugin"}))

	return &testClient{framer: framing.New[wire.ResponseEnvelope, wire.RequestEnvelope](client)}, func() { client.Close() }
}

func (c *testClient) call(t *testing.T, id string, method wire.Method, args any) wire.ResponseEnvelope {
	t.Helper()
	data, err := json.Marshal(args)
	require.NoError(t, err)

	require.NoError(t, c.framer.WriteFrame(wire.RequestEnvelope{
		RequestID: id,
		Method:    method,
		Args:      data,
	}))

	resp, err := c.framer.ReadFrame()
	require.NoError(t, err)
	return resp
}

func newTestServer(fake *platformtest.Fake) *Server {
	return New(fake, typing.New(), Config{}, zerolog.Nop())
}

func TestSendMessageRoundTrip(t *testing.T) {
	fake := platformtest.New()
	client, closeFn := dialTestServer(t, newTestServer(fake))
	defer closeFn()

	resp := client.call(t, "req-1", wire.MethodSendMessage, wire.SendMessageArgs{
		ChannelID: "42",
		Content:   "pong!",
	})

	require.Nil(t, resp.Error)
	var msg wire.Message
	require.NoError(t, json.Unmarshal(resp.Result, &msg))
	assert.Equal(t, "pong!", msg.Content)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestPlatformFailureRoundTripsAsError(t *testing.T) {
	fake := platformtest.New()
	fake.FailNextSend = &wire.APIError{Message: "404 not found"}

	client, closeFn := dialTestServer(t, newTestServer(fake))
	defer closeFn()

	resp := client.call(t, "req-1", wire.MethodSendMessage, wire.SendMessageArgs{ChannelID: "1", Content: "x"})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "404")
}

func TestUnknownMethodTerminatesConnection(t *testing.T) {
	fake := platformtest.New()
	client, closeFn := dialTestServer(t, newTestServer(fake))
	defer closeFn()

	data, err := json.Marshal(struct{}{})
	require.NoError(t, err)
	require.NoError(t, client.framer.WriteFrame(wire.RequestEnvelope{
		RequestID: "bad",
		Method:    wire.Method("not_a_method"),
		Args:      data,
	}))

	_, err = client.framer.ReadFrame()
	assert.Error(t, err, "an unrecognized method must end the connection rather than produce a response")
}

func TestConcurrentRequestsCorrelateByRequestID(t *testing.T) {
	fake := platformtest.New()
	client, closeFn := dialTestServer(t, newTestServer(fake))
	defer closeFn()

	const n = 20
	requestBody := make(map[string]string, n)

	for i := 0; i < n; i++ {
		id := requestIDFor(i)
		content := contentFor(i)
		requestBody[id] = content
		data, err := json.Marshal(wire.SendMessageArgs{ChannelID: "c", Content: content})
		require.NoError(t, err)
		require.NoError(t, client.framer.WriteFrame(wire.RequestEnvelope{
			RequestID: id,
			Method:    wire.MethodSendMessage,
			Args:      data,
		}))
	}

	results := make([]wire.ResponseEnvelope, 0, n)
	for i := 0; i < n; i++ {
		resp, err := client.framer.ReadFrame()
		require.NoError(t, err)
		results = append(results, resp)
	}

	for _, resp := range results {
		var msg wire.Message
		require.NoError(t, json.Unmarshal(resp.Result, &msg))
		want := requestBody[resp.RequestID]
		assert.Equal(t, want, msg.Content, "response for %s must carry its own request's content", resp.RequestID)
	}
}

func requestIDFor(i int) string { return "req-" + strconv.Itoa(i) }
func contentFor(i int) string   { return "payload-" + strconv.Itoa(i) }

func TestStartStopTypingRoundTrip(t *testing.T) {
	fake := platformtest.New()
	client, closeFn := dialTestServer(t, newTestServer(fake))
	defer closeFn()

	resp := client.call(t, "r1", wire.MethodStartTyping, wire.StartTypingArgs{ChannelID: "c"})
	require.Nil(t, resp.Error)
	var started wire.StartTypingResult
	require.NoError(t, json.Unmarshal(resp.Result, &started))

	assert.Equal(t, 1, fake.TypingStarted)

	stopResp := client.call(t, "r2", wire.MethodStopTyping, wire.StopTypingArgs{Key: started.Key})
	require.Nil(t, stopResp.Error)
}

func TestParseTraceContextRoundTripsAValidSpan(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	raw := traceID.String() + ":" + spanID.String()

	spanCtx, ok := parseTraceContext(raw)
	require.True(t, ok)
	assert.Equal(t, traceID, spanCtx.TraceID())
	assert.Equal(t, spanID, spanCtx.SpanID())
	assert.True(t, spanCtx.IsRemote())
}

func TestParseTraceContextRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "no-colon-here", "zz:zz", "4bf92f3577b34da6a3ce929d0e0e4736:"} {
		_, ok := parseTraceContext(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestDispatchAttachesParsedSpanContextForHandlers(t *testing.T) {
	fake := platformtest.New()
	s := New(fake, typing.New(), Config{}, zerolog.Nop())

	var seen trace.SpanContext
	s.handlers[wire.Method("test_capture_span")] = func(ctx context.Context, _ *Server, _ json.RawMessage) (any, error) {
		seen = trace.SpanContextFromContext(ctx)
		return wire.Empty{}, nil
	}

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	resp := s.dispatch(wire.RequestEnvelope{
		RequestID:    "req-trace",
		Method:       wire.Method("test_capture_span"),
		TraceContext: traceID.String() + ":" + spanID.String(),
		Args:         json.RawMessage(`{}`),
	})

	require.Nil(t, resp.Error)
	assert.True(t, seen.IsValid())
	assert.Equal(t, traceID, seen.TraceID())
	assert.Equal(t, spanID, seen.SpanID())
}

func TestRegistrationHooksFireOnConnectAndDisconnect(t *testing.T) {
	var mu sync.Mutex
	var registered, unregistered []string

	fake := platformtest.New()
	s := New(fake, typing.New(), Config{
		OnRegister:   func(id string) { mu.Lock(); registered = append(registered, id); mu.Unlock() },
		OnUnregister: func(id string) { mu.Lock(); unregistered = append(unregistered, id); mu.Unlock() },
	}, zerolog.Nop())

	_, closeFn := dialTestServer(t, s)
	closeFn()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(unregistered) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"test-plugin"}, registered)
	assert.Equal(t, []string{"test-plugin"}, unregistered)
}
