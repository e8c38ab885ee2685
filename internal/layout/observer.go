// Package layout turns node content-size changes into edge-anchor
// recompute requests: once immediately, once after the next frame and once
// more after a short settle delay for animated expand and collapse.
package layout

import (
	"sync"
	"time"
)

// Default timings
const (
	DefaultFrame  = 16 * time.Millisecond
	DefaultSettle = 50 * time.Millisecond
)

// Size is the measured content box of a node
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecomputeFunc asks the graph to recompute anchors of a node
type RecomputeFunc func(nodeID string)

type tracked struct {
	size   Size
	timers []*time.Timer
	gen    uint64
}

// Observer coalesces size reports per node
type Observer struct {
	mu        sync.Mutex
	recompute RecomputeFunc
	frame     time.Duration
	settle    time.Duration
	nodes     map[string]*tracked
	closed    bool
}

// NewObserver creates an observer. Non-positive timings fall back to defaults.
func NewObserver(recompute RecomputeFunc, frame, settle time.Duration) *Observer {
	if frame <= 0 {
		frame = DefaultFrame
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Observer{
		recompute: recompute,
		frame:     frame,
		settle:    settle,
		nodes:     make(map[string]*tracked),
	}
}

// Report records the current size of a node. Unchanged sizes are ignored;
// a change cancels follow-ups still pending from an earlier change.
func (o *Observer) Report(nodeID string, size Size) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	t, ok := o.nodes[nodeID]
	if ok && t.size == size {
		o.mu.Unlock()
		return false
	}
	if !ok {
		t = &tracked{}
		o.nodes[nodeID] = t
	}
	t.stop()
	t.size = size
	t.gen++
	gen := t.gen
	for _, d := range []time.Duration{o.frame, o.settle} {
		t.timers = append(t.timers, time.AfterFunc(d, func() { o.fire(nodeID, gen) }))
	}
	o.mu.Unlock()

	o.recompute(nodeID)
	return true
}

func (o *Observer) fire(nodeID string, gen uint64) {
	o.mu.Lock()
	t, ok := o.nodes[nodeID]
	if o.closed || !ok || t.gen != gen {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.recompute(nodeID)
}

func (t *tracked) stop() {
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
}

// Forget cancels follow-ups of a node and drops its last size
func (o *Observer) Forget(nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if t, ok := o.nodes[nodeID]; ok {
		t.stop()
		delete(o.nodes, nodeID)
	}
}

// Close cancels every pending follow-up
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, t := range o.nodes {
		t.stop()
		delete(o.nodes, id)
	}
	o.closed = true
}
