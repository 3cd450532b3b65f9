// Package typing tracks active typing-indicator sessions started on behalf
// of plugins. A session is identified by a generational TypingKey so that a
// slot reused after one session expires can never be confused with the
// session that originally held it.
package typing

import (
	"sync"
	"time"

	"github.com/Globidev/globibot-rs/internal/wire"
)

// Expiry is how long a typing session lives before it is dropped
// automatically, per spec §4.6.
const Expiry = 8 * time.Second

type slot struct {
	generation uint64
	active     bool
	timer      *time.Timer
}

// Registry is a slot map of active typing sessions. The zero value is not
// valid; use New.
//
// Every lock-protected method here does no I/O and makes no blocking call
// while the mutex is held; the platform call that actually ends a typing
// indicator runs in the caller-supplied callback, invoked after the lock is
// released.
type Registry struct {
	mu       sync.Mutex
	slots    []*slot
	freeList []uint64
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Start allocates a new typing session and arms its 8-second expiry timer.
// onExpire is invoked, without the registry lock held, if the session is
// still active when the timer fires; it should end the platform-level
// typing indicator.
func (r *Registry) Start(onExpire func(wire.TypingKey)) wire.TypingKey {
	r.mu.Lock()

	var index uint64
	var s *slot
	if n := len(r.freeList); n > 0 {
		index = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		s = r.slots[index]
		s.generation++
	} else {
		s = &slot{generation: 1}
		r.slots = append(r.slots, s)
		index = uint64(len(r.slots) - 1)
	}
	s.active = true

	key := wire.TypingKey{Index: index, Generation: s.generation}
	s.timer = time.AfterFunc(Expiry, func() { r.expire(key, onExpire) })

	r.mu.Unlock()
	return key
}

// Stop ends a typing session early. It reports whether key was still active;
// a false result means it had already expired or been stopped, which is not
// an error (spec §4.8: "no panic on double-remove").
func (r *Registry) Stop(key wire.TypingKey) bool {
	r.mu.Lock()
	s, ok := r.lookup(key)
	if !ok {
		r.mu.Unlock()
		return false
	}
	s.active = false
	timer := s.timer
	s.timer = nil
	r.freeList = append(r.freeList, key.Index)
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	return true
}

// Active reports whether key currently names a live session. Exposed for
// tests and diagnostics; callers should prefer Stop for the remove-and-check
// pattern since it is atomic.
func (r *Registry) Active(key wire.TypingKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.lookup(key)
	return ok
}

// lookup must be called with r.mu held.
func (r *Registry) lookup(key wire.TypingKey) (*slot, bool) {
	if key.Index >= uint64(len(r.slots)) {
		return nil, false
	}
	s := r.slots[key.Index]
	if !s.active || s.generation != key.Generation {
		return nil, false
	}
	return s, true
}

func (r *Registry) expire(key wire.TypingKey, onExpire func(wire.TypingKey)) {
	r.mu.Lock()
	s, ok := r.lookup(key)
	if !ok {
		r.mu.Unlock()
		return
	}
	s.active = false
	s.timer = nil
	r.freeList = append(r.freeList, key.Index)
	r.mu.Unlock()

	if onExpire != nil {
		onExpire(key)
	}
}
