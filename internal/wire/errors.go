package wire

import "errors"

// Error taxonomy (spec §7). ReadHandshake returns ErrHandshakeTimedOut and
// ErrHandshakeMissing as-is, so callers can match them with errors.Is. The
// other sentinels name the remaining kinds but no function in this module
// returns them: the publisher and RPC server log lag, send failures and
// unknown methods and drop the connection, and config.Validate returns its
// own error for a missing variable.
var (
	// ErrHandshakeTimedOut: no handshake frame arrived within the 5s
	// deadline. Logged; connection dropped; acceptor continues.
	ErrHandshakeTimedOut = errors.New("wire: handshake timed out")

	// ErrHandshakeMissing: peer closed before sending a first frame.
	ErrHandshakeMissing = errors.New("wire: handshake missing (EOF before first frame)")

	// ErrMethodUnknown: RPC request named a method tag outside KnownMethods.
	// Fatal to the connection.
	ErrMethodUnknown = errors.New("wire: unknown RPC method")

	// ErrSubscriberLag: the broadcast channel overflowed for a subscriber
	// before its send timeout could even fire. Subscriber evicted.
	ErrSubscriberLag = errors.New("wire: subscriber lagged behind broadcast")

	// ErrSubscriberSendTimeout: a subscriber's sink did not accept a frame
	// within the 5s send timeout. Subscriber evicted.
	ErrSubscriberSendTimeout = errors.New("wire: subscriber send timed out")

	// ErrConfigMissing: a required environment variable was absent at
	// startup. Fatal to the process.
	ErrConfigMissing = errors.New("wire: required configuration missing")
)
