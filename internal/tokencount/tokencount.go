// Package tokencount implements the process-wide, session-scoped token
// usage registry described in SPEC_FULL.md §3.1. It is a capped map:
// recording usage for a session moves it to the back of the eviction
// order, and when a new session would exceed MaxSessions the
// least-recently-touched session is evicted (LRU order).
package tokencount

import (
	"container/list"
	"sync"

	"github.com/agentoven/agent-runtime/pkg/models"
)

// DefaultMaxSessions is used when Registry is constructed with maxSessions <= 0.
const DefaultMaxSessions = 500

type entry struct {
	sessionID string
	usage     models.TokenUsage
}

// Registry tracks per-session token totals with a bounded number of live
// sessions. It is safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	maxSessions int
	order       *list.List               // front = oldest, back = newest
	index       map[string]*list.Element // sessionID -> element holding *entry

	totalInput  int
	totalOutput int
}

// NewRegistry constructs a Registry capped at maxSessions concurrently
// tracked sessions.
func NewRegistry(maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Registry{
		maxSessions: maxSessions,
		order:       list.New(),
		index:       make(map[string]*list.Element),
	}
}

// RecordUsage adds input/output tokens to sessionID's running total,
// creating the session entry if needed and evicting the oldest session
// first when the registry is already at capacity.
func (r *Registry) RecordUsage(sessionID string, inputTokens, outputTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalInput += inputTokens
	r.totalOutput += outputTokens

	if el, ok := r.index[sessionID]; ok {
		e := el.Value.(*entry)
		e.usage.TotalInputTokens += inputTokens
		e.usage.TotalOutputTokens += outputTokens
		e.usage.CallCount++
		r.order.MoveToBack(el)
		return
	}

	if len(r.index) >= r.maxSessions {
		r.evictOldest()
	}

	e := &entry{
		sessionID: sessionID,
		usage: models.TokenUsage{
			SessionID:         sessionID,
			TotalInputTokens:  inputTokens,
			TotalOutputTokens: outputTokens,
			CallCount:         1,
		},
	}
	r.index[sessionID] = r.order.PushBack(e)
}

// evictOldest removes the least-recently-touched session. Caller must
// hold r.mu.
func (r *Registry) evictOldest() {
	front := r.order.Front()
	if front == nil {
		return
	}
	e := front.Value.(*entry)
	delete(r.index, e.sessionID)
	r.order.Remove(front)
}

// Usage returns the current totals for sessionID, or a zero-value
// TokenUsage if the session has no recorded usage (including one that
// was evicted).
func (r *Registry) Usage(sessionID string) models.TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.index[sessionID]
	if !ok {
		return models.TokenUsage{SessionID: sessionID}
	}
	return el.Value.(*entry).usage
}

// GlobalTotals returns the cumulative input/output tokens recorded across
// every session ever seen by this registry, including evicted sessions.
func (r *Registry) GlobalTotals() (input, output int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalInput, r.totalOutput
}

// SessionCount reports how many sessions are currently tracked.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}
