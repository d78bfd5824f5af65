package assets

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrSessionRequired is returned when a pool lookup has no session id.
var ErrSessionRequired = errors.New("assets: session id is required")

// StoreFactory builds the store for a newly seen session.
type StoreFactory func(sessionID string) Store

// SessionFactory returns a factory giving every session its own upload-only store.
func SessionFactory(reg *Registry, opts ...Option) StoreFactory {
	return func(string) Store {
		return NewSessionStore(reg, opts...)
	}
}

// OverlayFactory returns a factory layering per-session uploads over one shared store.
func OverlayFactory(reg *Registry, shared Store, opts ...Option) StoreFactory {
	return func(string) Store {
		return NewOverlayStore(NewSessionStore(reg, opts...), shared)
	}
}

type poolEntry struct {
	store    Store
	lastSeen time.Time
}

// Pool owns one Store per presentation session and evicts sessions left idle.
type Pool struct {
	factory StoreFactory
	idle    time.Duration
	clock   func() time.Time

	mu      sync.Mutex
	entries map[string]*poolEntry
}

// NewPool builds a pool. idle <= 0 disables eviction.
func NewPool(factory StoreFactory, idle time.Duration) *Pool {
	return &Pool{
		factory: factory,
		idle:    idle,
		clock:   time.Now,
		entries: make(map[string]*poolEntry),
	}
}

// WithPoolClock overrides the pool's clock. Intended for tests.
func (p *Pool) WithPoolClock(clock func() time.Time) *Pool {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Store returns the session's store, creating it on first use.
func (p *Pool) Store(sessionID string) (Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	now := p.clock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.entries[sessionID]; ok {
		entry.lastSeen = now
		return entry.store, nil
	}
	entry := &poolEntry{store: p.factory(sessionID), lastSeen: now}
	p.entries[sessionID] = entry
	return entry.store, nil
}

// Drop discards the session's store and its uploads.
func (p *Pool) Drop(sessionID string) {
	p.mu.Lock()
	delete(p.entries, strings.TrimSpace(sessionID))
	p.mu.Unlock()
}

// Sweep evicts sessions idle since before now-idle and reports how many were removed.
func (p *Pool) Sweep(now time.Time) int {
	if p.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-p.idle)

	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, entry := range p.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(p.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
