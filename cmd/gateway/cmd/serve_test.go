package cmd

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Globidev/globibot-rs/internal/publisher"
	"github.com/Globidev/globibot-rs/internal/rpcserver"
	"github.com/Globidev/globibot-rs/internal/transport"
	"github.com/Globidev/globibot-rs/internal/typing"
)

// failingTransport reports a bind failure from Listen, as a misconfigured
// SUBSCRIBER_ADDR/RPC_ADDR (e.g. an address already in use) would.
type failingTransport struct{ err error }

func (f failingTransport) Listen(context.Context) (<-chan transport.Accept, error) {
	return nil, f.err
}

func (f failingTransport) Connect(context.Context) (net.Conn, error) {
	return nil, f.err
}

func (f failingTransport) Addr() string { return "test-addr" }

func TestServeSubscribersReturnsErrorOnBindFailure(t *testing.T) {
	bindErr := errors.New("address already in use")
	pub := publisher.New(publisher.Config{BufferSize: 1}, zerolog.Nop())

	err := serveSubscribers(context.Background(), failingTransport{err: bindErr}, pub, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, bindErr)
}

func TestServeRPCReturnsErrorOnBindFailure(t *testing.T) {
	bindErr := errors.New("permission denied")
	s := rpcserver.New(nil, typing.New(), rpcserver.Config{}, zerolog.Nop())

	err := serveRPC(context.Background(), failingTransport{err: bindErr}, s, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, bindErr)
}
