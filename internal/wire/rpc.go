package wire

import "encoding/json"

// Method is the fixed, compile-time method vocabulary shared by the RPC
// server and client. Both sides import this one file; an unrecognized
// Method value on the wire is a protocol error, never a silent no-op (spec
// §3 invariants). There is no codegen step generating this table (see
// DESIGN.md) — it is the single source of truth both sides compile against.
type Method string

const (
	MethodCurrentUser               Method = "current_user"
	MethodSendMessage               Method = "send_message"
	MethodSendReply                 Method = "send_reply"
	MethodEditMessage               Method = "edit_message"
	MethodDeleteMessage             Method = "delete_message"
	MethodSendFile                  Method = "send_file"
	MethodContentSafe               Method = "content_safe"
	MethodStartTyping               Method = "start_typing"
	MethodStopTyping                Method = "stop_typing"
	MethodCreateGlobalCommand       Method = "create_global_command"
	MethodEditGlobalCommand         Method = "edit_global_command"
	MethodUpsertGlobalCommand       Method = "upsert_global_command"
	MethodCreateGuildCommand        Method = "create_guild_command"
	MethodEditGuildCommand          Method = "edit_guild_command"
	MethodUpsertGuildCommand        Method = "upsert_guild_command"
	MethodApplicationCommands       Method = "application_commands"
	MethodCreateInteractionResponse Method = "create_interaction_response"
	MethodEditInteractionResponse   Method = "edit_interaction_response"
	MethodCreateReaction            Method = "create_reaction"
	MethodGetUser                   Method = "get_user"
	MethodGetChannel                Method = "get_channel"
)

// KnownMethods lists every method in the table. The RPC server checks a
// RequestEnvelope's tag against its own handler map, which covers the same
// methods, not against this set.
var KnownMethods = map[Method]struct{}{
	MethodCurrentUser:               {},
	MethodSendMessage:               {},
	MethodSendReply:                 {},
	MethodEditMessage:               {},
	MethodDeleteMessage:             {},
	MethodSendFile:                  {},
	MethodContentSafe:               {},
	MethodStartTyping:               {},
	MethodStopTyping:                {},
	MethodCreateGlobalCommand:       {},
	MethodEditGlobalCommand:         {},
	MethodUpsertGlobalCommand:       {},
	MethodCreateGuildCommand:        {},
	MethodEditGuildCommand:          {},
	MethodUpsertGuildCommand:        {},
	MethodApplicationCommands:       {},
	MethodCreateInteractionResponse: {},
	MethodEditInteractionResponse:   {},
	MethodCreateReaction:            {},
	MethodGetUser:                   {},
	MethodGetChannel:                {},
}

// Empty is the result shape for methods that return nothing but success.
type Empty struct{}

// TypingKey is an opaque, generational handle to an active typing session.
// It is only valid on the gateway that issued it (spec §3 invariant); the
// Generation field is what makes a reused slot index distinguishable from
// the session that originally owned it.
type TypingKey struct {
	Index      uint64 `json:"index"`
	Generation uint64 `json:"generation"`
}

// User mirrors the platform's user payload.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Channel mirrors the platform's channel payload.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	GuildID string `json:"guild_id,omitempty"`
}

// Command is a slash command as stored by the platform. Body carries the
// submitted/stored JSON (name, description, options, ...) verbatim; the
// gateway treats it as opaque except where the upsert algorithm (spec §4.9)
// inspects specific fields.
type Command struct {
	ID      string          `json:"id"`
	GuildID string          `json:"guild_id,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// Per-method argument shapes. Each has an exported Go type so the server and
// client agree on the request shape at compile time.

type SendMessageArgs struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type SendReplyArgs struct {
	ChannelID   string `json:"channel_id"`
	Content     string `json:"content"`
	ReferenceID string `json:"reference_id"`
}

type EditMessageArgs struct {
	ChannelID  string `json:"channel_id"`
	MessageID  string `json:"message_id"`
	NewContent string `json:"new_content"`
}

type DeleteMessageArgs struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type SendFileArgs struct {
	ChannelID string `json:"channel_id"`
	Bytes     []byte `json:"bytes"`
	Name      string `json:"name"`
}

type ContentSafeArgs struct {
	Text    string  `json:"text"`
	GuildID *string `json:"guild_id,omitempty"`
}

type ContentSafeResult struct {
	Text string `json:"text"`
}

type StartTypingArgs struct {
	ChannelID string `json:"channel_id"`
}

type StartTypingResult struct {
	Key TypingKey `json:"key"`
}

type StopTypingArgs struct {
	Key TypingKey `json:"key"`
}

type CreateGlobalCommandArgs struct {
	Body json.RawMessage `json:"body"`
}

type EditGlobalCommandArgs struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

type UpsertGlobalCommandArgs struct {
	Body json.RawMessage `json:"body"`
}

type CreateGuildCommandArgs struct {
	GuildID string          `json:"guild_id"`
	Body    json.RawMessage `json:"body"`
}

type EditGuildCommandArgs struct {
	GuildID string          `json:"guild_id"`
	ID      string          `json:"id"`
	Body    json.RawMessage `json:"body"`
}

type UpsertGuildCommandArgs struct {
	GuildID string          `json:"guild_id"`
	Body    json.RawMessage `json:"body"`
}

type CreateInteractionResponseArgs struct {
	InteractionID string          `json:"interaction_id"`
	Token         string          `json:"token"`
	Body          json.RawMessage `json:"body"`
}

type EditInteractionResponseArgs struct {
	Token string          `json:"token"`
	Body  json.RawMessage `json:"body"`
}

type CreateReactionArgs struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Reaction  string `json:"reaction"`
}

type GetUserArgs struct {
	ID string `json:"id"`
}

type GetChannelArgs struct {
	ID string `json:"id"`
}

// APIError is the lossy string carrier for upstream platform failures
// (spec §3: "every response is either success or a DiscordApiError(string)").
type APIError struct {
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

// RequestEnvelope is the frame an RPC client writes for every call after the
// handshake. Deadline and TraceContext travel with the request but handlers
// are not required to pre-empt long work on deadline expiry (spec §4.5).
type RequestEnvelope struct {
	RequestID    string          `json:"request_id"`
	Deadline     *int64          `json:"deadline,omitempty"` // unix millis, optional
	TraceContext string          `json:"trace_context,omitempty"`
	Method       Method          `json:"method_tag"`
	Args         json.RawMessage `json:"args"`
}

// ResponseEnvelope is the frame the gateway writes back for a given
// RequestID; it carries either Result or Error, never both. Responses may
// return out of submission order (spec §4.5/§5).
type ResponseEnvelope struct {
	RequestID string          `json:"request_id"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *APIError       `json:"error,omitempty"`
}
