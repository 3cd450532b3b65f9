package wire

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/Globidev/globibot-rs/internal/framing"
)

// HandshakeTimeout is the deadline the acceptor gives a peer to send its
// first frame (spec §4.3, §5).
const HandshakeTimeout = 5 * time.Second

// ReadHandshake reads exactly one frame of type T from conn within timeout,
// classifying the outcome per spec §4.3/§7: a deadline overrun becomes
// ErrHandshakeTimedOut, a clean close before any bytes becomes
// ErrHandshakeMissing, anything else is returned as-is (a TransportIO
// failure local to this connection).
func ReadHandshake[T any](conn net.Conn, timeout time.Duration) (T, error) {
	var zero T

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return zero, err
	}
	defer conn.SetReadDeadline(time.Time{})

	framer := framing.New[T, struct{}](conn)
	value, err := framer.ReadFrame()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return zero, ErrHandshakeTimedOut
		}
		if errors.Is(err, io.EOF) {
			return zero, ErrHandshakeMissing
		}
		return zero, err
	}
	return value, nil
}
