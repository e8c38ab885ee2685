// Package debounce provides keyed trailing-edge debouncing on top of
// time.AfterFunc. Each new call for a key cancels and restarts its timer.
package debounce

import (
	"sort"
	"sync"
	"time"
)

type pending struct {
	timer *time.Timer
	fn    func()
	seq   uint64
}

// Group debounces callbacks per key
type Group struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pending
	seq     uint64
	closed  bool
}

// New creates a group that waits delay after the last call for a key
func New(delay time.Duration) *Group {
	return &Group{
		delay:   delay,
		pending: make(map[string]*pending),
	}
}

// Call schedules fn for key, replacing any pending callback for that key.
// A non-positive delay runs fn synchronously.
func (g *Group) Call(key string, fn func()) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if p, ok := g.pending[key]; ok {
		p.timer.Stop()
		delete(g.pending, key)
	}
	if g.delay <= 0 {
		g.mu.Unlock()
		fn()
		return
	}

	g.seq++
	p := &pending{fn: fn, seq: g.seq}
	g.pending[key] = p
	p.timer = time.AfterFunc(g.delay, func() { g.fire(key, p.seq) })
	g.mu.Unlock()
}

func (g *Group) fire(key string, seq uint64) {
	g.mu.Lock()
	p, ok := g.pending[key]
	// a stopped timer may still fire once; a newer call owns the key
	if !ok || p.seq != seq {
		g.mu.Unlock()
		return
	}
	delete(g.pending, key)
	g.mu.Unlock()

	p.fn()
}

// Cancel drops the pending callback for key
func (g *Group) Cancel(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(g.pending, key)
	return true
}

// CancelAll drops every pending callback
func (g *Group) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, p := range g.pending {
		p.timer.Stop()
		delete(g.pending, key)
	}
}

// Pending reports whether key has a scheduled callback
func (g *Group) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.pending[key]
	return ok
}

// Flush runs every pending callback now, in scheduling order
func (g *Group) Flush() int {
	g.mu.Lock()
	fns := make([]*pending, 0, len(g.pending))
	for key, p := range g.pending {
		p.timer.Stop()
		fns = append(fns, p)
		delete(g.pending, key)
	}
	g.mu.Unlock()

	sort.Slice(fns, func(i, j int) bool { return fns[i].seq < fns[j].seq })
	for _, p := range fns {
		p.fn()
	}
	return len(fns)
}

// Close cancels everything and rejects further calls
func (g *Group) Close() {
	g.CancelAll()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}
