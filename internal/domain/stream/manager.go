package stream

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionExists = errors.New("user already has an active stream session")
	ErrAtCapacity    = errors.New("stream session capacity reached")
)

const balanceChannel = "stream:balance_events"

var (
	streamSessionsGauge      = expvar.NewInt("stream_sessions")
	streamEventsSentTotal    = expvar.NewInt("stream_events_sent_total")
	streamEventsDroppedTotal = expvar.NewInt("stream_events_dropped_total")
	streamRejectedTotal      = expvar.NewInt("stream_sessions_rejected_total")
)

type balanceEventMessage struct {
	UserID           string `json:"user_id"`
	NewBalance       int64  `json:"new_balance"`
	Amount           int64  `json:"amount"`
	Reference        string `json:"reference"`
	SenderInstanceID string `json:"sender_instance_id"`
}

// Config bounds the manager. Values come from the environment.
type Config struct {
	MaxSessions       int
	QueueSize         int
	HeartbeatInterval time.Duration
	MaxHeartbeats     int
}

// Manager owns all live sessions on this instance: one per user, a global
// cap, and Redis fan-out so a settlement on any instance reaches the
// instance holding the user's session.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	redis  *redis.Client
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

func NewManager(cfg Config, redisClient *redis.Client) *Manager {
	return NewManagerWithInstanceID(cfg, redisClient, uuid.NewString())
}

// NewManagerWithInstanceID creates a manager with an explicit instance
// identifier, used to filter its own Redis echoes.
func NewManagerWithInstanceID(cfg Config, redisClient *redis.Client, instanceID string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cfg:        cfg,
		sessions:   make(map[uuid.UUID]*Session),
		redis:      redisClient,
		ctx:        ctx,
		cancel:     cancel,
		instanceID: instanceID,
	}
	if redisClient != nil {
		m.pubsub = redisClient.Subscribe(ctx, balanceChannel)
	}
	return m
}

// Run starts the Redis subscriber (call in goroutine).
func (m *Manager) Run() {
	if m.pubsub == nil {
		return
	}
	ch := m.pubsub.Channel()
	for {
		select {
		case <-m.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.handleBalancePayload(msg.Payload)
		}
	}
}

func (m *Manager) handleBalancePayload(payload string) {
	var ev balanceEventMessage
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return
	}
	if ev.SenderInstanceID == m.instanceID {
		return
	}
	userID, err := uuid.Parse(ev.UserID)
	if err != nil {
		return
	}
	m.pushBalanceLocal(userID, ev.NewBalance, ev.Amount, ev.Reference)
}

// Register opens a session for the user. A user gets at most one session;
// the whole instance gets at most MaxSessions.
func (m *Manager) Register(userID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[userID]; exists {
		streamRejectedTotal.Add(1)
		return nil, ErrSessionExists
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		streamRejectedTotal.Add(1)
		return nil, ErrAtCapacity
	}

	s := newSession(userID, m.cfg.QueueSize, m.remove)
	m.sessions[userID] = s
	streamSessionsGauge.Add(1)

	log.Debug().
		Str("user_id", userID.String()).
		Int("active", len(m.sessions)).
		Msg("stream session opened")
	return s, nil
}

// remove is the session's onClose hook. The registry entry is only cleared
// if it still points at the closing session, so a session that reconnected
// in between is left alone.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if current, ok := m.sessions[s.UserID]; ok && current == s {
		delete(m.sessions, s.UserID)
		streamSessionsGauge.Add(-1)
	}
	m.mu.Unlock()

	log.Debug().
		Str("user_id", s.UserID.String()).
		Int("heartbeats", s.Heartbeats()).
		Msg("stream session closed")
}

// ActiveSessions returns the number of open sessions on this instance.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// HasSession reports whether the user holds a session on this instance.
func (m *Manager) HasSession(userID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userID]
	return ok
}

// PublishBalanceUpdate pushes a balance event to the user's session on any
// instance. Local delivery happens directly; other instances get it over
// Redis. Implements the notification dispatcher's publisher.
func (m *Manager) PublishBalanceUpdate(userID uuid.UUID, newBalance, amount int64, reference string) {
	m.pushBalanceLocal(userID, newBalance, amount, reference)

	if m.redis == nil {
		return
	}
	payload, err := json.Marshal(balanceEventMessage{
		UserID:           userID.String(),
		NewBalance:       newBalance,
		Amount:           amount,
		Reference:        reference,
		SenderInstanceID: m.instanceID,
	})
	if err != nil {
		return
	}
	if err := m.redis.Publish(m.ctx, balanceChannel, payload).Err(); err != nil {
		log.Error().Err(err).Msg("balance event publish failed")
	}
}

func (m *Manager) pushBalanceLocal(userID uuid.UUID, newBalance, amount int64, reference string) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	if s.Enqueue(Event{
		Type:      EventBalanceUpdate,
		Balance:   &newBalance,
		Amount:    &amount,
		Reference: reference,
		Timestamp: time.Now(),
	}) {
		streamEventsSentTotal.Add(1)
	}
}

// HeartbeatInterval exposes the configured tick for session writers.
func (m *Manager) HeartbeatInterval() time.Duration {
	return m.cfg.HeartbeatInterval
}

// MaxHeartbeats exposes the session lease in ticks.
func (m *Manager) MaxHeartbeats() int {
	return m.cfg.MaxHeartbeats
}

// Shutdown closes every session and stops the subscriber.
func (m *Manager) Shutdown() {
	m.cancel()
	if m.pubsub != nil {
		m.pubsub.Close()
	}

	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
}
