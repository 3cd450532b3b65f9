// Package observability exposes a live view of connected plugins: a JSON
// roster and a Server-Sent-Events stream of connect/disconnect updates, fed
// by the publisher and RPC server's registration hooks.
package observability

import "sync"

// PluginInfo describes one plugin's connection state.
type PluginInfo struct {
	Name      string `json:"name"`
	HasRPC    bool   `json:"has_rpc"`
	HasEvents bool   `json:"has_events"`
}

// Update is one roster change, broadcast to every SSE subscriber. Kind is
// either "upsert" (a plugin connected or gained a capability) or "remove"
// (one of a plugin's connections ended and its whole entry was dropped).
type Update struct {
	Kind   string     `json:"kind"`
	Plugin *PluginInfo `json:"plugin,omitempty"`
	Name   string     `json:"name,omitempty"`
}

// Registry tracks connected plugins in memory and fans out every change to
// subscribed SSE streams. The zero value is not usable; use NewRegistry.
type Registry struct {
	mu      sync.Mutex
	plugins map[string]*PluginInfo

	subMu   sync.Mutex
	subs    map[uint64]chan Update
	nextSub uint64
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*PluginInfo),
		subs:    make(map[uint64]chan Update),
	}
}

// RegisterRPC marks name as having an active RPC connection, creating the
// entry if this is its first connection.
func (r *Registry) RegisterRPC(name string) { r.setCapability(name, func(p *PluginInfo) { p.HasRPC = true }) }

// RegisterEvents marks name as having an active event subscription.
func (r *Registry) RegisterEvents(name string) {
	r.setCapability(name, func(p *PluginInfo) { p.HasEvents = true })
}

func (r *Registry) setCapability(name string, set func(*PluginInfo)) {
	r.mu.Lock()
	p, ok := r.plugins[name]
	if !ok {
		p = &PluginInfo{Name: name}
		r.plugins[name] = p
	}
	set(p)
	snapshot := *p
	r.mu.Unlock()

	r.broadcast(Update{Kind: "upsert", Plugin: &snapshot})
}

// Remove drops name from the roster entirely, for use when a plugin's
// connection (RPC or events) ends.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	_, existed := r.plugins[name]
	delete(r.plugins, name)
	r.mu.Unlock()

	if existed {
		r.broadcast(Update{Kind: "remove", Name: name})
	}
}

// List returns a snapshot of every currently connected plugin.
func (r *Registry) List() []PluginInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PluginInfo, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, *p)
	}
	return out
}

// Subscribe registers an SSE stream for future updates. The returned cancel
// func must be called once the stream ends to release its channel.
func (r *Registry) Subscribe() (<-chan Update, func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Update, 32)
	r.subs[id] = ch
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Registry) broadcast(u Update) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- u:
		default:
			// A stalled SSE client must not block the registry; it simply
			// misses this update and continues from /plugins on reconnect.
		}
	}
}
