// Package rpcclient is the plugin side of the RPC fabric: a typed stub with
// one method per entry in the method table, backed by a background
// dispatcher that correlates out-of-order responses to the call that is
// waiting on them.
//
// Connection setup and response correlation follow the same shape as a
// broker client that keeps a map of request id to a one-shot response
// channel and resolves it from a single reader goroutine: Connect sends the
// handshake and starts that goroutine; every typed method below registers a
// channel, writes its request, and blocks on either the channel or context
// cancellation.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Globidev/globibot-rs/internal/framing"
	"github.com/Globidev/globibot-rs/internal/wire"
)

// Client is a connected, typed RPC session to the gateway.
type Client struct {
	conn   net.Conn
	framer *framing.Framer[wire.ResponseEnvelope, wire.RequestEnvelope]

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan wire.ResponseEnvelope

	closeOnce sync.Once
	closed    chan struct{}
}

// Connect performs the RPC handshake over conn (writing RpcHandshake{ID: id})
// and starts the background dispatcher. The returned Client is usable
// immediately; Close shuts down the dispatcher and the connection.
func Connect(conn net.Conn, id string) (*Client, error) {
	handshakeFramer := framing.New[wire.Empty, wire.RpcHandshake](conn)
	if err := handshakeFramer.WriteFrame(wire.RpcHandshake{ID: id}); err != nil {
		return nil, fmt.Errorf("rpcclient: writing handshake: %w", err)
	}

	c := &Client{
		conn:    conn,
		framer:  framing.New[wire.ResponseEnvelope, wire.RequestEnvelope](conn),
		pending: make(map[string]chan wire.ResponseEnvelope),
		closed:  make(chan struct{}),
	}
	go c.dispatch()
	return c, nil
}

// Close ends the session and fails every in-flight call with a transport
// error. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// dispatch reads responses until the connection fails, routing each to the
// channel registered for its request id. On failure it resolves every
// outstanding call with a transport error, matching the "fail open calls"
// contract of a dispatcher that owns the read half of the connection.
func (c *Client) dispatch() {
	defer c.Close()
	for {
		resp, err := c.framer.ReadFrame()
		if err != nil {
			c.failAll(err)
			return
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.RequestID]
		if ok {
			delete(c.pending, resp.RequestID)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) failAll(transportErr error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan wire.ResponseEnvelope)
	c.pendingMu.Unlock()

	for id, ch := range pending {
		ch <- wire.ResponseEnvelope{
			RequestID: id,
			Error:     &wire.APIError{Message: "rpcclient: transport failed: " + transportErr.Error()},
		}
	}
}

func (c *Client) nextRequestID() string {
	return uuid.New().String()
}

// call writes one request and waits for its correlated response, or for ctx
// to end first. It returns the raw result payload on success.
func (c *Client) call(ctx context.Context, method wire.Method, args any) (json.RawMessage, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: encoding %s args: %w", method, err)
	}

	id := c.nextRequestID()
	respCh := make(chan wire.ResponseEnvelope, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	req := wire.RequestEnvelope{
		RequestID:    id,
		Method:       method,
		Args:         data,
		TraceContext: traceContextFrom(ctx),
	}
	if deadline, ok := ctx.Deadline(); ok {
		millis := deadline.UnixMilli()
		req.Deadline = &millis
	}

	c.writeMu.Lock()
	err = c.framer.WriteFrame(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("rpcclient: writing %s request: %w", method, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-c.closed:
		return nil, fmt.Errorf("rpcclient: session closed while awaiting %s response", method)
	}
}

// traceContextFrom renders the span context carried by ctx, if any, as the
// string travelling in RequestEnvelope.TraceContext.
func traceContextFrom(ctx context.Context) string {
	span := trace.SpanContextFromContext(ctx)
	if !span.IsValid() {
		return ""
	}
	return span.TraceID().String() + ":" + span.SpanID().String()
}

func callTyped[T any](c *Client, ctx context.Context, method wire.Method, args any) (T, error) {
	var zero T
	raw, err := c.call(ctx, method, args)
	if err != nil {
		return zero, err
	}
	if len(raw) == 0 {
		return zero, nil
	}
	if err := json.Unmarshal(raw, &zero); err != nil {
		return zero, fmt.Errorf("rpcclient: decoding %s result: %w", method, err)
	}
	return zero, nil
}

func (c *Client) CurrentUser(ctx context.Context) (wire.User, error) {
	return callTyped[wire.User](c, ctx, wire.MethodCurrentUser, wire.Empty{})
}

func (c *Client) GetUser(ctx context.Context, id string) (wire.User, error) {
	return callTyped[wire.User](c, ctx, wire.MethodGetUser, wire.GetUserArgs{ID: id})
}

func (c *Client) GetChannel(ctx context.Context, id string) (wire.Channel, error) {
	return callTyped[wire.Channel](c, ctx, wire.MethodGetChannel, wire.GetChannelArgs{ID: id})
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (wire.Message, error) {
	return callTyped[wire.Message](c, ctx, wire.MethodSendMessage, wire.SendMessageArgs{ChannelID: channelID, Content: content})
}

func (c *Client) SendReply(ctx context.Context, channelID, content, referenceID string) (wire.Message, error) {
	return callTyped[wire.Message](c, ctx, wire.MethodSendReply, wire.SendReplyArgs{
		ChannelID: channelID, Content: content, ReferenceID: referenceID,
	})
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, newContent string) (wire.Message, error) {
	return callTyped[wire.Message](c, ctx, wire.MethodEditMessage, wire.EditMessageArgs{
		ChannelID: channelID, MessageID: messageID, NewContent: newContent,
	})
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, err := callTyped[wire.Empty](c, ctx, wire.MethodDeleteMessage, wire.DeleteMessageArgs{
		ChannelID: channelID, MessageID: messageID,
	})
	return err
}

func (c *Client) SendFile(ctx context.Context, channelID string, bytes []byte, name string) (wire.Message, error) {
	return callTyped[wire.Message](c, ctx, wire.MethodSendFile, wire.SendFileArgs{
		ChannelID: channelID, Bytes: bytes, Name: name,
	})
}

func (c *Client) ContentSafe(ctx context.Context, text string, guildID *string) (string, error) {
	result, err := callTyped[wire.ContentSafeResult](c, ctx, wire.MethodContentSafe, wire.ContentSafeArgs{
		Text: text, GuildID: guildID,
	})
	return result.Text, err
}

func (c *Client) StartTyping(ctx context.Context, channelID string) (wire.TypingKey, error) {
	result, err := callTyped[wire.StartTypingResult](c, ctx, wire.MethodStartTyping, wire.StartTypingArgs{ChannelID: channelID})
	return result.Key, err
}

func (c *Client) StopTyping(ctx context.Context, key wire.TypingKey) error {
	_, err := callTyped[wire.Empty](c, ctx, wire.MethodStopTyping, wire.StopTypingArgs{Key: key})
	return err
}

func (c *Client) CreateGlobalCommand(ctx context.Context, body json.RawMessage) (wire.Command, error) {
	return callTyped[wire.Command](c, ctx, wire.MethodCreateGlobalCommand, wire.CreateGlobalCommandArgs{Body: body})
}

func (c *Client) EditGlobalCommand(ctx context.Context, id string, body json.RawMessage) (wire.Command, error) {
	return callTyped[wire.Command](c, ctx, wire.MethodEditGlobalCommand, wire.EditGlobalCommandArgs{ID: id, Body: body})
}

func (c *Client) UpsertGlobalCommand(ctx context.Context, body json.RawMessage) (wire.Command, error) {
	return callTyped[wire.Command](c, ctx, wire.MethodUpsertGlobalCommand, wire.UpsertGlobalCommandArgs{Body: body})
}

func (c *Client) CreateGuildCommand(ctx context.Context, guildID string, body json.RawMessage) (wire.Command, error) {
	return callTyped[wire.Command](c, ctx, wire.MethodCreateGuildCommand, wire.CreateGuildCommandArgs{GuildID: guildID, Body: body})
}

func (c *Client) EditGuildCommand(ctx context.Context, guildID, id string, body json.RawMessage) (wire.Command, error) {
	return callTyped[wire.Command](c, ctx, wire.MethodEditGuildCommand, wire.EditGuildCommandArgs{GuildID: guildID, ID: id, Body: body})
}

func (c *Client) UpsertGuildCommand(ctx context.Context, guildID string, body json.RawMessage) (wire.Command, error) {
	return callTyped[wire.Command](c, ctx, wire.MethodUpsertGuildCommand, wire.UpsertGuildCommandArgs{GuildID: guildID, Body: body})
}

func (c *Client) ApplicationCommands(ctx context.Context) ([]wire.Command, error) {
	return callTyped[[]wire.Command](c, ctx, wire.MethodApplicationCommands, wire.Empty{})
}

func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, token string, body json.RawMessage) error {
	_, err := callTyped[wire.Empty](c, ctx, wire.MethodCreateInteractionResponse, wire.CreateInteractionResponseArgs{
		InteractionID: interactionID, Token: token, Body: body,
	})
	return err
}

func (c *Client) EditInteractionResponse(ctx context.Context, token string, body json.RawMessage) (wire.Message, error) {
	return callTyped[wire.Message](c, ctx, wire.MethodEditInteractionResponse, wire.EditInteractionResponseArgs{
		Token: token, Body: body,
	})
}

func (c *Client) CreateReaction(ctx context.Context, channelID, messageID, reaction string) error {
	_, err := callTyped[wire.Empty](c, ctx, wire.MethodCreateReaction, wire.CreateReactionArgs{
		ChannelID: channelID, MessageID: messageID, Reaction: reaction,
	})
	return err
}
