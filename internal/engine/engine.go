// Package engine is the State Store (C1): process-wide config, the ordered
// rule collection, the bounded log ring, and the log broadcast fan-out.
// It is modeled as an explicit value (per spec.md §9: "avoid implicit
// globals; it complicates testing and parallel fixtures"), generalizing
// the teacher's internal/chaos/controller.go package-level
// Get/Set/Clear-behind-one-mutex shape into a struct with the same
// locking discipline.
package engine

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/rules"
)

// Engine owns all process-wide mutable state and is injected into the
// forwarder and the management API — never accessed through a package
// global.
type Engine struct {
	mu     sync.RWMutex
	config Config
	rules  []*rules.Rule
	index  map[uuid.UUID]int // rule id -> position in rules, kept in sync

	Logs      *LogRing
	Broadcast *Broadcaster
}

// New constructs an Engine with chaos disabled and no target configured,
// per spec.md §3 ("targetUrl empty forbids proxying at all").
func New() *Engine {
	return &Engine{
		index:     make(map[uuid.UUID]int),
		Logs:      NewLogRing(1000),
		Broadcast: NewBroadcaster(),
	}
}

// GetConfig returns a copy of the current config.
func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// UpdateConfig merges patch onto the stored config and returns the result.
// updateConfig({}) is a no-op per spec.md §8.
func (e *Engine) UpdateConfig(patch ConfigPatch) Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = e.config.applyPatch(patch)
	log.Printf("[engine] config updated: targetUrl=%q enabled=%v", e.config.TargetURL, e.config.Enabled)
	return e.config
}

// ListRules returns a defensive copy of the rule collection, in insertion
// (== evaluation) order.
func (e *Engine) ListRules() []*rules.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*rules.Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Clone()
	}
	return out
}

// GetRule returns a defensive copy of a single rule, or ok=false if id is
// unknown.
func (e *Engine) GetRule(id uuid.UUID) (*rules.Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return e.rules[i].Clone(), true
}

// CreateRule appends r to the end of the collection (creation order is
// evaluation order, spec.md §3). If r.ID is already taken, it is
// rejected by the caller before CreateRule is invoked (see internal/api).
func (e *Engine) CreateRule(r *rules.Rule) *rules.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
	e.index[r.ID] = len(e.rules) - 1
	log.Printf("[engine] rule created: id=%s name=%q chaosType=%s", r.ID, r.Name, r.ChaosType)
	return r.Clone()
}

// UpdateRule merges a patch function onto the stored rule (id immutable)
// and returns the updated copy, or ok=false if id is unknown.
func (e *Engine) UpdateRule(id uuid.UUID, apply func(*rules.Rule)) (*rules.Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	apply(e.rules[i])
	e.rules[i].ID = id // id is immutable regardless of what apply did
	e.rules[i].Recompile()
	log.Printf("[engine] rule updated: id=%s", id)
	return e.rules[i].Clone(), true
}

// DeleteRule removes a rule by id, preserving the order of the rest.
func (e *Engine) DeleteRule(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.rules = append(e.rules[:i], e.rules[i+1:]...)
	delete(e.index, id)
	for id2, pos := range e.index {
		if pos > i {
			e.index[id2] = pos - 1
		}
	}
	log.Printf("[engine] rule deleted: id=%s", id)
	return true
}

// AppendLog records entry (evicting the oldest if over the 1000-entry cap)
// and broadcasts it to every subscriber.
func (e *Engine) AppendLog(entry LogEntry) {
	e.Logs.Append(entry)
	e.Broadcast.Publish(entry)
}

// ReadLogs returns up to limit entries, newest first.
func (e *Engine) ReadLogs(limit int) []LogEntry {
	return e.Logs.Read(limit)
}

// ClearLogs empties the log ring.
func (e *Engine) ClearLogs() {
	e.Logs.Clear()
}

// Subscribe registers a new log sink.
func (e *Engine) Subscribe() Sink {
	return e.Broadcast.Subscribe()
}

// Unsubscribe removes a log sink.
func (e *Engine) Unsubscribe(s Sink) {
	e.Broadcast.Unsubscribe(s)
}

// ErrUnknownRule is the error value for a rule id the engine does not
// hold. The Engine's own methods report that case with ok=false, and
// internal/api answers it with a 404 without using this value.
var ErrUnknownRule = fmt.Errorf("unknown rule id")
