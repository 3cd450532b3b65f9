// Package platform is the narrow, out-of-process chat-platform capability
// the gateway's RPC handlers call through. Everything platform-specific
// (REST endpoints, rate limits, auth) lives behind the Client interface;
// internal/rpcserver never talks to the platform directly.
package platform

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/Globidev/globibot-rs/internal/wire"
)

// Client is the capability boundary every RPC handler is built against. A
// concrete implementation wraps the real platform REST API; tests use an
// in-memory fake satisfying the same interface.
type Client interface {
	CurrentUser(ctx context.Context) (wire.User, error)
	GetUser(ctx context.Context, id string) (wire.User, error)
	GetChannel(ctx context.Context, id string) (wire.Channel, error)

	SendMessage(ctx context.Context, channelID, content string) (wire.Message, error)
	SendReply(ctx context.Context, channelID, content, referenceID string) (wire.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, newContent string) (wire.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendFile(ctx context.Context, channelID string, bytes []byte, name string) (wire.Message, error)

	// ContentSafe rewrites raw mentions in text into a form safe to
	// display verbatim, resolving usernames from guildID's member cache
	// where possible (spec §4.1: content_safe(text, guild?) -> string).
	ContentSafe(ctx context.Context, text string, guildID *string) (string, error)

	// StartTyping begins a platform-level typing indicator and returns a
	// function that ends it. The caller (internal/typing) is responsible
	// for calling stop exactly once, at most.
	StartTyping(ctx context.Context, channelID string) (stop func(context.Context) error, err error)

	CreateGlobalCommand(ctx context.Context, body json.RawMessage) (wire.Command, error)
	EditGlobalCommand(ctx context.Context, id string, body json.RawMessage) (wire.Command, error)
	GlobalCommands(ctx context.Context) ([]wire.Command, error)

	CreateGuildCommand(ctx context.Context, guildID string, body json.RawMessage) (wire.Command, error)
	EditGuildCommand(ctx context.Context, guildID, id string, body json.RawMessage) (wire.Command, error)
	GuildCommands(ctx context.Context, guildID string) ([]wire.Command, error)

	CreateInteractionResponse(ctx context.Context, interactionID, token string, body json.RawMessage) error
	EditInteractionResponse(ctx context.Context, token string, body json.RawMessage) (wire.Message, error)

	CreateReaction(ctx context.Context, channelID, messageID, reaction string) error
}

// mentionPattern matches a raw user mention of the form <@id> or <@!id>.
var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// everyoneOrHerePattern matches the two mass-ping tokens that content_safe
// must always neutralize, regardless of cache state.
var everyoneOrHerePattern = regexp.MustCompile(`@(everyone|here)`)

// sanitizeMassMentions applies the cache-independent half of content_safe:
// @everyone/@here are always defanged by inserting a zero-width space, since
// allowing them through unsanitized is never safe regardless of guild
// context. Mention-to-username resolution is layered on top by the concrete
// Client implementation, which has access to the user cache.
func sanitizeMassMentions(text string) string {
	return everyoneOrHerePattern.ReplaceAllString(text, "@​$1")
}
