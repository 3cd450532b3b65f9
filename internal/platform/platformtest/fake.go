// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Globidev/globibot-rs/internal/platform"
	"github.com/Globidev/globibot-rs/internal/wire"
)

// Fake is an in-memory platform.Client. All mutating calls are recorded for
// assertions; lookups are served from the Users/Channels maps, seeded
// directly by the test.
type Fake struct {
	mu sync.Mutex

	Users    map[string]wire.User
	Channels map[string]wire.Channel

	SentMessages  []wire.Message
	DeletedIDs    []string
	GlobalCmds    map[string]wire.Command
	GuildCmds     map[string]map[string]wire.Command
	Reactions     []string
	TypingStarted int
	TypingStopped int

	nextID int

	// FailNextSend, if set, is returned (and cleared) by the next send-like
	// call instead of succeeding.
	FailNextSend error
}

// New builds an empty Fake.
func New() *Fake {
	return &Fake{
		Users:      make(map[string]wire.User),
		Channels:   make(map[string]wire.Channel),
		GlobalCmds: make(map[string]wire.Command),
		GuildCmds:  make(map[string]map[string]wire.Command),
	}
}

func (f *Fake) nextMessageID() string {
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID)
}

func (f *Fake) CurrentUser(ctx context.Context) (wire.User, error) {
	return wire.User{ID: "self", Username: "gateway-bot", Bot: true}, nil
}

func (f *Fake) GetUser(ctx context.Context, id string) (wire.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return wire.User{}, &wire.APIError{Message: "unknown user " + id}
	}
	return u, nil
}

func (f *Fake) GetChannel(ctx context.Context, id string) (wire.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Channels[id]
	if !ok {
		return wire.Channel{}, &wire.APIError{Message: "unknown channel " + id}
	}
	return c, nil
}

func (f *Fake) SendMessage(ctx context.Context, channelID, content string) (wire.Message, error) {
	return f.record(channelID, content)
}

func (f *Fake) SendReply(ctx context.Context, channelID, content, referenceID string) (wire.Message, error) {
	return f.record(channelID, content)
}

func (f *Fake) EditMessage(ctx context.Context, channelID, messageID, newContent string) (wire.Message, error) {
	return f.record(channelID, newContent)
}

func (f *Fake) record(channelID, content string) (wire.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNextSend != nil {
		err := f.FailNextSend
		f.FailNextSend = nil
		return wire.Message{}, err
	}
	m := wire.Message{ID: f.nextMessageID(), ChannelID: channelID, Content: content}
	f.SentMessages = append(f.SentMessages, m)
	return m, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedIDs = append(f.DeletedIDs, messageID)
	return nil
}

func (f *Fake) SendFile(ctx context.Context, channelID string, bytes []byte, name string) (wire.Message, error) {
	return f.record(channelID, "file:"+name)
}

func (f *Fake) ContentSafe(ctx context.Context, text string, guildID *string) (string, error) {
	return text, nil
}

func (f *Fake) StartTyping(ctx context.Context, channelID string) (func(context.Context) error, error) {
	f.mu.Lock()
	f.TypingStarted++
	f.mu.Unlock()
	return func(context.Context) error {
		f.mu.Lock()
		f.TypingStopped++
		f.mu.Unlock()
		return nil
	}, nil
}

func (f *Fake) CreateGlobalCommand(ctx context.Context, body json.RawMessage) (wire.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cmd := wire.Command{ID: fmt.Sprintf("cmd-%d", f.nextID), Body: body}
	f.GlobalCmds[cmd.ID] = cmd
	return cmd, nil
}

func (f *Fake) EditGlobalCommand(ctx context.Context, id string, body json.RawMessage) (wire.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, ok := f.GlobalCmds[id]
	if !ok {
		return wire.Command{}, &wire.APIError{Message: "unknown command " + id}
	}
	cmd.Body = body
	f.GlobalCmds[id] = cmd
	return cmd, nil
}

func (f *Fake) GlobalCommands(ctx context.Context) ([]wire.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Command, 0, len(f.GlobalCmds))
	for _, cmd := range f.GlobalCmds {
		out = append(out, cmd)
	}
	return out, nil
}

func (f *Fake) CreateGuildCommand(ctx context.Context, guildID string, body json.RawMessage) (wire.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cmd := wire.Command{ID: fmt.Sprintf("cmd-%d", f.nextID), GuildID: guildID, Body: body}
	if f.GuildCmds[guildID] == nil {
		f.GuildCmds[guildID] = make(map[string]wire.Command)
	}
	f.GuildCmds[guildID][cmd.ID] = cmd
	return cmd, nil
}

func (f *Fake) EditGuildCommand(ctx context.Context, guildID, id string, body json.RawMessage) (wire.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, ok := f.GuildCmds[guildID][id]
	if !ok {
		return wire.Command{}, &wire.APIError{Message: "unknown guild command " + id}
	}
	cmd.Body = body
	f.GuildCmds[guildID][id] = cmd
	return cmd, nil
}

func (f *Fake) GuildCommands(ctx context.Context, guildID string) ([]wire.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := f.GuildCmds[guildID]
	out := make([]wire.Command, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, cmd)
	}
	return out, nil
}

func (f *Fake) CreateInteractionResponse(ctx context.Context, interactionID, token string, body json.RawMessage) error {
	return nil
}

func (f *Fake) EditInteractionResponse(ctx context.Context, token string, body json.RawMessage) (wire.Message, error) {
	return f.record("interaction", string(body))
}

func (f *Fake) CreateReaction(ctx context.Context, channelID, messageID, reaction string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reactions = append(f.Reactions, reaction)
	return nil
}

var _ platform.Client = (*Fake)(nil)
