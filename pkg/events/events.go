package events

import (
	"errors"
	"io"
	"sync"
)

// Handler receives every payload published to the subject it subscribed to.
// Handlers run synchronously on the publishing goroutine.
type Handler func(subject string, payload any)

// Hub is an in-process publish/subscribe fan-out. Subscribers receive
// payloads for their subject until their subscription is closed.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]Handler)}
}

// Publish delivers payload to every subscriber of subj. Publishing to a
// subject with no subscribers is a no-op.
func (h *Hub) Publish(subj string, payload any) {
	if h == nil {
		return
	}

	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[subj]))
	for _, fn := range h.subs[subj] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(subj, payload)
	}
}

type subscription struct {
	hub     *Hub
	subject string
	id      int

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if handlers, ok := s.hub.subs[s.subject]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.hub.subs, s.subject)
		}
	}
	return nil
}

// Subscribe registers fn for subj and returns a closer that removes the
// subscription. Closing twice is a no-op.
func (h *Hub) Subscribe(subj string, fn Handler) (io.Closer, error) {
	if h == nil {
		return nil, errors.New("nil hub")
	}
	if subj == "" {
		return nil, errors.New("subject is required")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.subs[subj] == nil {
		h.subs[subj] = make(map[int]Handler)
	}
	h.subs[subj][id] = fn

	return &subscription{hub: h, subject: subj, id: id}, nil
}
