// Package publisher fans platform events out to subscribed plugins.
//
// Every gateway event (a message, a deletion, an interaction) is broadcast to
// every currently-connected event subscriber. Each subscriber only receives
// the event types it asked for at handshake time, and a subscriber that
// cannot keep up or stops responding is dropped rather than allowed to stall
// the rest.
package publisher

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Globidev/globibot-rs/internal/framing"
	"github.com/Globidev/globibot-rs/internal/wire"
)

// DefaultBufferSize is how many unread events a subscriber may fall behind
// by before it is considered lagging and evicted.
const DefaultBufferSize = 16

// SendTimeout bounds how long a single event write to a subscriber's
// transport may take before that subscriber is evicted.
const SendTimeout = 5 * time.Second

// Config tunes a Publisher's behavior. The zero value is not valid; use New.
type Config struct {
	// BufferSize overrides DefaultBufferSize when positive.
	BufferSize int

	// OnSubscribe, if set, is called after a subscriber is registered.
	OnSubscribe func(id string)

	// OnUnsubscribe, if set, is called after a subscriber is dropped, for
	// whatever reason.
	OnUnsubscribe func(id string)
}

// Publisher is a fan-out broadcast bus from gateway events to event
// subscribers. A Publisher has no background goroutine of its own; all work
// happens in per-subscriber goroutines spawned by Add.
type Publisher struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      uint64

	bufferSize int
	onSub      func(id string)
	onUnsub    func(id string)
	log        zerolog.Logger
}

type subscriber struct {
	pluginID string
	events   wire.EventTypeSet
	queue    chan wire.Event
	done     chan struct{}
	evictOne sync.Once
}

// New builds a Publisher. log is annotated with component=publisher.
func New(cfg Config, log zerolog.Logger) *Publisher {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Publisher{
		subscribers: make(map[uint64]*subscriber),
		bufferSize:  bufferSize,
		onSub:       cfg.OnSubscribe,
		onUnsub:     cfg.OnUnsubscribe,
		log:         log.With().Str("component", "publisher").Logger(),
	}
}

// Add registers conn as a subscriber for req.Events and spawns the goroutine
// that drains its queue to the wire. It returns immediately; the subscriber
// runs until it is evicted or conn is closed by the caller.
func (p *Publisher) Add(conn net.Conn, req wire.SubscribeRequest) {
	sub := &subscriber{
		pluginID: req.ID,
		events:   req.Events,
		queue:    make(chan wire.Event, p.bufferSize),
		done:     make(chan struct{}),
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = sub
	p.mu.Unlock()

	p.log.Info().Str("plugin_id", sub.pluginID).Msg("subscriber registered")
	if p.onSub != nil {
		p.onSub(sub.pluginID)
	}

	go p.run(id, sub, conn)
}

// Broadcast delivers event to every subscriber whose event set contains its
// type. A subscriber whose queue is already full is evicted rather than
// allowed to block the broadcast; this mirrors a slow consumer missing its
// chance to keep up with a bounded channel.
func (p *Publisher) Broadcast(event wire.Event) {
	p.mu.Lock()
	targets := make([]*subscriber, 0, len(p.subscribers))
	ids := make([]uint64, 0, len(p.subscribers))
	for id, sub := range p.subscribers {
		if sub.events.Contains(event.Type) {
			targets = append(targets, sub)
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	delivered := 0
	for i, sub := range targets {
		select {
		case <-sub.done:
			// already evicted by its own run goroutine; nothing to do
		case sub.queue <- event:
			delivered++
		default:
			p.log.Warn().Str("plugin_id", sub.pluginID).Msg("subscriber lagged, evicting")
			p.evict(ids[i])
		}
	}
	p.log.Debug().Str("event_type", string(event.Type)).Int("delivered", delivered).Msg("broadcast")
}

// Count reports the number of currently registered subscribers.
func (p *Publisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

func (p *Publisher) run(id uint64, sub *subscriber, conn net.Conn) {
	defer conn.Close()

	framer := framing.New[wire.Empty, wire.Event](conn)

	for {
		select {
		case <-sub.done:
			return
		case event := <-sub.queue:
			if err := conn.SetWriteDeadline(time.Now().Add(SendTimeout)); err != nil {
				p.log.Warn().Str("plugin_id", sub.pluginID).Err(err).Msg("failed to set write deadline")
				p.evict(id)
				return
			}

			if err := framer.WriteFrame(event); err != nil {
				p.log.Warn().Str("plugin_id", sub.pluginID).Err(err).Msg("failed to send event to subscriber")
				p.evict(id)
				return
			}
		}
	}
}

// evict removes the subscriber under id, if still present, signals its run
// goroutine to stop, and notifies onUnsub exactly once. Safe to call more
// than once for the same id, and safe to call concurrently with Broadcast.
func (p *Publisher) evict(id uint64) {
	p.mu.Lock()
	sub, ok := p.subscribers[id]
	if ok {
		delete(p.subscribers, id)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	sub.evictOne.Do(func() {
		close(sub.done)
		p.log.Info().Str("plugin_id", sub.pluginID).Msg("subscriber unregistered")
		if p.onUnsub != nil {
			p.onUnsub(sub.pluginID)
		}
	})
}
