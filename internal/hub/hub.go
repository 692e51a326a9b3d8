// Package hub fans typed event envelopes out to subscribers of a session
// topic. Delivery is at-least-once with per-subscriber FIFO ordering; there
// is no durable log, so a disconnected subscriber misses events permanently.
package hub

import (
	"sync"

	"quiz-session-service/internal/domain"
)

// DefaultQueueSize bounds each subscriber's outbound queue.
const DefaultQueueSize = 16

type subscriber struct {
	ch     chan domain.Envelope
	closed bool
}

// Hub routes envelopes to the live subscribers of each session. It holds
// routing state only, no business data.
type Hub struct {
	queueSize int

	mu     sync.Mutex
	topics map[string]map[*subscriber]struct{}
}

func New() *Hub {
	return NewWithQueueSize(DefaultQueueSize)
}

func NewWithQueueSize(size int) *Hub {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Hub{
		queueSize: size,
		topics:    make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a connection on the session topic and returns its
// envelope stream. Initial envelopes, if any, are queued before the stream is
// handed out so the subscriber sees them ahead of later publishes. The cancel
// func must be called on disconnect; it is safe to call more than once and
// after the hub has already dropped the subscriber.
func (h *Hub) Subscribe(sessionID string, initial ...domain.Envelope) (<-chan domain.Envelope, func()) {
	size := h.queueSize
	if len(initial) > size {
		size = len(initial)
	}
	sub := &subscriber{ch: make(chan domain.Envelope, size)}
	for _, env := range initial {
		sub.ch <- env
	}

	h.mu.Lock()
	conns, ok := h.topics[sessionID]
	if !ok {
		conns = make(map[*subscriber]struct{})
		h.topics[sessionID] = conns
	}
	conns[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		h.dropLocked(sessionID, sub)
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers the envelope to every subscriber of the session. It never
// blocks on a slow consumer: a subscriber whose queue is full is dropped and
// its channel closed rather than stalling the publisher.
func (h *Hub) Publish(sessionID string, env domain.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.topics[sessionID] {
		select {
		case sub.ch <- env:
		default:
			h.dropLocked(sessionID, sub)
		}
	}
}

// Subscribers reports the live subscriber count for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[sessionID])
}

// dropLocked removes the subscriber and purges the topic when it empties.
func (h *Hub) dropLocked(sessionID string, sub *subscriber) {
	conns, ok := h.topics[sessionID]
	if !ok {
		return
	}
	if _, ok := conns[sub]; !ok {
		return
	}
	delete(conns, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	if len(conns) == 0 {
		delete(h.topics, sessionID)
	}
}
