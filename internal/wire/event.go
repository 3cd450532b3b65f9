// Package wire defines every value that crosses a gateway socket: the event
// tagged union, the subscribe/handshake requests, and the fixed RPC method
// table. Nothing here does any I/O; internal/framing carries these types
// over the wire, internal/publisher and internal/rpcserver/internal/rpcclient
// give them behavior.
package wire

import (
	"encoding/json"
	"fmt"
)

// EventType is the discriminant used for subscription filtering. It is the
// only field the publisher ever inspects on a broadcast event.
type EventType string

const (
	EventTypeMessageCreate     EventType = "MessageCreate"
	EventTypeMessageDelete     EventType = "MessageDelete"
	EventTypeInteractionCreate EventType = "InteractionCreate"
)

// AllEventTypes lists every known discriminant, for plugin-side convenience.
// Subscribe requests are not checked against it: an unknown type in a
// filter simply never matches a broadcast.
var AllEventTypes = []EventType{
	EventTypeMessageCreate,
	EventTypeMessageDelete,
	EventTypeInteractionCreate,
}

// Author is the platform user that sent a message.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// Message mirrors the platform's message payload, opaque beyond the fields
// the core and plugins actually need.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	Content     string       `json:"content"`
	Author      Author       `json:"author"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Interaction is a command-invocation payload.
type Interaction struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	ChannelID string          `json:"channel_id"`
	GuildID   string          `json:"guild_id,omitempty"`
	User      Author          `json:"user"`
	CommandID string          `json:"command_id"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// MessageCreate is the payload of an Event with type EventTypeMessageCreate.
type MessageCreate struct {
	Message Message `json:"message"`
}

// MessageDelete is the payload of an Event with type EventTypeMessageDelete.
type MessageDelete struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// InteractionCreate is the payload of an Event with type
// EventTypeInteractionCreate.
type InteractionCreate struct {
	Interaction Interaction `json:"interaction"`
}

// Event is a closed, externally-tagged union of the three variants the
// gateway ever broadcasts. The publisher never inspects anything but Type;
// payloads pass through untouched.
type Event struct {
	Type              EventType
	MessageCreate     *MessageCreate
	MessageDelete     *MessageDelete
	InteractionCreate *InteractionCreate
}

// NewMessageCreate builds a MessageCreate event.
func NewMessageCreate(m Message) Event {
	return Event{Type: EventTypeMessageCreate, MessageCreate: &MessageCreate{Message: m}}
}

// NewMessageDelete builds a MessageDelete event.
func NewMessageDelete(channelID, messageID string) Event {
	return Event{Type: EventTypeMessageDelete, MessageDelete: &MessageDelete{ChannelID: channelID, MessageID: messageID}}
}

// NewInteractionCreate builds an InteractionCreate event.
func NewInteractionCreate(i Interaction) Event {
	return Event{Type: EventTypeInteractionCreate, InteractionCreate: &InteractionCreate{Interaction: i}}
}

// MarshalJSON renders Event as an externally-tagged union:
// {"MessageCreate": {...}}, {"MessageDelete": {...}} or
// {"InteractionCreate": {...}}.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventTypeMessageCreate:
		return json.Marshal(map[string]*MessageCreate{"MessageCreate": e.MessageCreate})
	case EventTypeMessageDelete:
		return json.Marshal(map[string]*MessageDelete{"MessageDelete": e.MessageDelete})
	case EventTypeInteractionCreate:
		return json.Marshal(map[string]*InteractionCreate{"InteractionCreate": e.InteractionCreate})
	default:
		return nil, fmt.Errorf("wire: cannot marshal event with unknown type %q", e.Type)
	}
}

// UnmarshalJSON parses the externally-tagged union form produced by
// MarshalJSON. Exactly one of the three known keys must be present.
func (e *Event) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("wire: decode event envelope: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("wire: event envelope must have exactly one variant key, got %d", len(tagged))
	}

	if raw, ok := tagged[string(EventTypeMessageCreate)]; ok {
		var payload MessageCreate
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("wire: decode MessageCreate: %w", err)
		}
		*e = Event{Type: EventTypeMessageCreate, MessageCreate: &payload}
		return nil
	}
	if raw, ok := tagged[string(EventTypeMessageDelete)]; ok {
		var payload MessageDelete
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("wire: decode MessageDelete: %w", err)
		}
		*e = Event{Type: EventTypeMessageDelete, MessageDelete: &payload}
		return nil
	}
	if raw, ok := tagged[string(EventTypeInteractionCreate)]; ok {
		var payload InteractionCreate
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("wire: decode InteractionCreate: %w", err)
		}
		*e = Event{Type: EventTypeInteractionCreate, InteractionCreate: &payload}
		return nil
	}

	for key := range tagged {
		return fmt.Errorf("wire: unknown event variant %q", key)
	}
	return fmt.Errorf("wire: empty event envelope")
}

// EventTypeSet is a set of EventType, serialized as a bare JSON array of
// strings, matching the wire contract in spec §6.
type EventTypeSet map[EventType]struct{}

// NewEventTypeSet builds a set from the given types.
func NewEventTypeSet(types ...EventType) EventTypeSet {
	s := make(EventTypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether ty is a member of the set.
func (s EventTypeSet) Contains(ty EventType) bool {
	_, ok := s[ty]
	return ok
}

func (s EventTypeSet) MarshalJSON() ([]byte, error) {
	list := make([]EventType, 0, len(s))
	for t := range s {
		list = append(list, t)
	}
	return json.Marshal(list)
}

func (s *EventTypeSet) UnmarshalJSON(data []byte) error {
	var list []EventType
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	set := make(EventTypeSet, len(list))
	for _, t := range list {
		set[t] = struct{}{}
	}
	*s = set
	return nil
}

// SubscribeRequest is the first frame a subscriber writes to the gateway.
type SubscribeRequest struct {
	ID     string       `json:"id"`
	Events EventTypeSet `json:"events"`
}

// RpcHandshake is the first frame an RPC client writes to the gateway.
type RpcHandshake struct {
	ID string `json:"id"`
}
