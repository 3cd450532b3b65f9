// Package rpcserver implements the gateway side of the RPC fabric: per
// connection, it reads the handshake, then demultiplexes a stream of
// requests against a fixed method table, dispatching each concurrently and
// writing responses back as they complete (possibly out of order).
package rpcserver

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/Globidev/globibot-rs/internal/framing"
	"github.com/Globidev/globibot-rs/internal/platform"
	"github.com/Globidev/globibot-rs/internal/typing"
	"github.com/Globidev/globibot-rs/internal/wire"
)

// handlerFunc implements one RPC method. args is the raw, still-encoded
// request payload; the result is marshaled by the caller.
type handlerFunc func(ctx context.Context, s *Server, args json.RawMessage) (any, error)

// Config tunes a Server's registration hooks. The zero value is valid: a
// server with no observability wiring.
type Config struct {
	// OnRegister, if set, is called once the handshake for a connection
	// succeeds, with the peer's declared id.
	OnRegister func(id string)

	// OnUnregister, if set, is called once that connection's Serve loop
	// returns, for whatever reason.
	OnUnregister func(id string)
}

// Server is the gateway-side RPC dispatcher. One Server handles every
// accepted RPC connection; state shared across connections (the platform
// client, the typing registry) is held here and handed to handlers by value.
type Server struct {
	platform platform.Client
	typing   *typing.Registry
	log      zerolog.Logger

	onRegister   func(id string)
	onUnregister func(id string)

	handlers map[wire.Method]handlerFunc
}

// New builds a Server backed by client and typingRegistry.
func New(client platform.Client, typingRegistry *typing.Registry, cfg Config, log zerolog.Logger) *Server {
	s := &Server{
		platform:     client,
		typing:       typingRegistry,
		log:          log.With().Str("component", "rpcserver").Logger(),
		onRegister:   cfg.OnRegister,
		onUnregister: cfg.OnUnregister,
	}
	s.handlers = defaultHandlers()
	return s
}

// Serve handles one accepted RPC connection to completion: handshake, then
// the request loop, until the peer disconnects or a framing error occurs.
// It always closes conn before returning.
func (s *Server) Serve(conn net.Conn) {
	defer conn.Close()

	hs, err := wire.ReadHandshake[wire.RpcHandshake](conn, wire.HandshakeTimeout)
	if err != nil {
		s.log.Warn().Err(err).Msg("rpc handshake failed")
		return
	}

	s.log.Info().Str("plugin_id", hs.ID).Msg("rpc client registered")
	if s.onRegister != nil {
		s.onRegister(hs.ID)
	}
	defer func() {
		s.log.Info().Str("plugin_id", hs.ID).Msg("rpc client unregistered")
		if s.onUnregister != nil {
			s.onUnregister(hs.ID)
		}
	}()

	framer := framing.New[wire.RequestEnvelope, wire.ResponseEnvelope](conn)
	var writeMu sync.Mutex
	var inFlight sync.WaitGroup

	for {
		req, err := framer.ReadFrame()
		if err != nil {
			break
		}

		if _, ok := s.handlers[req.Method]; !ok {
			s.log.Warn().Str("plugin_id", hs.ID).Str("method", string(req.Method)).
				Msg("unknown rpc method, terminating connection")
			break
		}

		inFlight.Add(1)
		go func(req wire.RequestEnvelope) {
			defer inFlight.Done()
			resp := s.dispatch(req)

			writeMu.Lock()
			defer writeMu.Unlock()
			if err := framer.WriteFrame(resp); err != nil {
				s.log.Warn().Str("plugin_id", hs.ID).Err(err).Msg("failed to write rpc response")
			}
		}(req)
	}

	inFlight.Wait()
}

// dispatch runs one request to completion and builds its response envelope.
// The caller has already verified req.Method is in the method table: an
// unrecognized method is a fatal framing-level error handled by Serve itself
// by ending the connection, not a per-request response.
func (s *Server) dispatch(req wire.RequestEnvelope) wire.ResponseEnvelope {
	handler := s.handlers[req.Method]

	ctx := context.Background()
	if spanCtx, ok := parseTraceContext(req.TraceContext); ok {
		ctx = trace.ContextWithSpanContext(ctx, spanCtx)
	}

	var cancel context.CancelFunc
	if req.Deadline != nil {
		deadline := time.UnixMilli(*req.Deadline)
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	result, err := handler(ctx, s, req.Args)
	if err != nil {
		return wire.ResponseEnvelope{
			RequestID: req.RequestID,
			Error:     &wire.APIError{Message: err.Error()},
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return wire.ResponseEnvelope{
			RequestID: req.RequestID,
			Error:     &wire.APIError{Message: "failed to encode result: " + err.Error()},
		}
	}
	return wire.ResponseEnvelope{RequestID: req.RequestID, Result: data}
}

// parseTraceContext decodes the "traceID:spanID" string written by the
// client's traceContextFrom. A missing or malformed value is not an error:
// the request just proceeds with no span attached.
func parseTraceContext(raw string) (trace.SpanContext, bool) {
	traceIDHex, spanIDHex, found := strings.Cut(raw, ":")
	if !found {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	if !spanCtx.IsValid() {
		return trace.SpanContext{}, false
	}
	return spanCtx, true
}
