package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType for realtime stream messages
type EventType string

const (
	EventConnected     EventType = "connected"
	EventBalanceUpdate EventType = "balance_update"
	EventHeartbeat     EventType = "heartbeat"
	EventWarning       EventType = "warning"
	EventError         EventType = "error"
)

// Event is one message pushed over a session.
type Event struct {
	Type       EventType `json:"type"`
	Message    string    `json:"message,omitempty"`
	Balance    *int64    `json:"balance,omitempty"`
	Amount     *int64    `json:"amount,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	Heartbeats int       `json:"heartbeats,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session is one user's live stream. The queue is bounded; when a consumer
// falls behind, the oldest events are discarded so the newest always lands,
// and the writer emits a single warning so the client knows it missed
// something.
type Session struct {
	UserID    uuid.UUID
	StartedAt time.Time

	queue chan Event
	done  chan struct{}

	mu         sync.Mutex
	heartbeats int
	dropped    bool
	warned     bool

	closeOnce sync.Once
	onClose   func(*Session)
}

func newSession(userID uuid.UUID, queueSize int, onClose func(*Session)) *Session {
	return &Session{
		UserID:    userID,
		StartedAt: time.Now(),
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
		onClose:   onClose,
	}
}

// Events is the consumer side of the queue.
func (s *Session) Events() <-chan Event {
	return s.queue
}

// Done closes when the session ends, from either side.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Enqueue admits an event, evicting the oldest queued entries on overflow
// until the new one fits. The loss is surfaced through TakeWarning instead
// of a queued event, so the notice cannot itself be evicted by a later
// overflow. Safe for concurrent producers; never blocks.
func (s *Session) Enqueue(ev Event) bool {
	for {
		select {
		case <-s.done:
			return false
		default:
		}

		select {
		case s.queue <- ev:
			return true
		default:
		}

		select {
		case <-s.queue:
			streamEventsDroppedTotal.Add(1)
			s.mu.Lock()
			s.dropped = true
			s.mu.Unlock()
		default:
			// Consumer drained it in the meantime; retry the send.
		}
	}
}

// TakeWarning reports, once per session, that queued events were dropped.
// The writer checks it before each delivery and emits a warning event.
func (s *Session) TakeWarning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped && !s.warned {
		s.warned = true
		return true
	}
	return false
}

func overflowWarning() Event {
	return Event{Type: EventWarning, Message: "client too slow, oldest events dropped", Timestamp: time.Now()}
}

// Beat records one heartbeat and reports the running count.
func (s *Session) Beat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats++
	return s.heartbeats
}

// Heartbeats returns the count so far.
func (s *Session) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeats
}

// Close ends the session exactly once. Idempotent: writer exit, client
// disconnect and lease expiry can all race into it.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
