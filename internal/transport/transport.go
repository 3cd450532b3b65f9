// Package transport binds or connects the byte-stream sockets that the
// gateway's framed protocols run over. A Transport is either TCP or Unix;
// both expose the same Listen/Connect shape so the rest of the gateway never
// branches on protocol.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog/log"
)

// Accept carries one accepted connection, or the error from one failed
// accept attempt. Listen delivers a value of this type per incoming peer;
// an individual accept failure never closes the channel.
type Accept struct {
	Conn net.Conn
	Err  error
}

// Transport binds a listener or dials a single connection over TCP or a
// Unix domain socket.
type Transport interface {
	// Listen starts accepting connections and returns a channel of Accept
	// values. The channel closes only when the underlying listener fails
	// fatally; per-connection accept errors are delivered, not fatal.
	Listen(ctx context.Context) (<-chan Accept, error)

	// Connect dials a single connection.
	Connect(ctx context.Context) (net.Conn, error)

	// Addr describes the configured endpoint, for logging.
	Addr() string
}

// TCP is a Transport bound to a TCP address (e.g. "0.0.0.0:4242").
type TCP struct {
	Address string
}

func (t TCP) Addr() string { return t.Address }

func (t TCP) Listen(ctx context.Context) (<-chan Accept, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", t.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp %s: %w", t.Address, err)
	}
	return acceptLoop(ctx, ln), nil
}

func (t TCP) Connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s: %w", t.Address, err)
	}
	return conn, nil
}

// Unix is a Transport bound to a Unix domain socket path.
type Unix struct {
	Path string
}

func (u Unix) Addr() string { return u.Path }

func (u Unix) Listen(ctx context.Context) (<-chan Accept, error) {
	// Best-effort: a stale socket file from a previous run must not block
	// bind. Failure to remove it is not fatal; the subsequent bind will
	// surface the real error if removal was actually required.
	if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Str("path", u.Path).Err(err).Msg("failed to remove stale unix socket")
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", u.Path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen unix %s: %w", u.Path, err)
	}
	return acceptLoop(ctx, ln), nil
}

func (u Unix) Connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", u.Path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial unix %s: %w", u.Path, err)
	}
	return conn, nil
}

// acceptLoop runs the shared accept-and-report loop for both transports: one
// goroutine per listener, one Accept value per incoming connection or per
// accept error, and the channel closes only when the listener itself is
// closed (by ctx cancellation or a fatal listener error).
func acceptLoop(ctx context.Context, ln net.Listener) <-chan Accept {
	out := make(chan Accept)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go func() {
		defer close(out)
		for {
			conn, err := ln.Accept()
			if err != nil {
				// A cancelled ctx is a clean shutdown: end silently.
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- Accept{Err: err}:
				case <-ctx.Done():
					return
				}
				// net.ErrClosed means the listener itself is gone and
				// nothing more will come off it, so the sequence ends.
				// Any other error belongs to one accept attempt; it has
				// been reported and accepting continues.
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
			select {
			case out <- Accept{Conn: conn}:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}()

	return out
}
