package stream_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ficore/wallet-api/internal/domain/stream"
)

func testConfig() stream.Config {
	return stream.Config{
		MaxSessions:       3,
		QueueSize:         4,
		HeartbeatInterval: 5 * time.Second,
		MaxHeartbeats:     60,
	}
}

func TestRegisterOneSessionPerUser(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	userID := uuid.New()
	first, err := m.Register(userID)
	if err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := m.Register(userID); err != stream.ErrSessionExists {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}

	// After closing, the user can reconnect.
	first.Close()
	if _, err := m.Register(userID); err != nil {
		t.Fatalf("register after close failed: %v", err)
	}
}

func TestRegisterCapacity(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	sessions := make([]*stream.Session, 0, 3)
	for i := 0; i < 3; i++ {
		s, err := m.Register(uuid.New())
		if err != nil {
			t.Fatalf("register %d failed: %v", i, err)
		}
		sessions = append(sessions, s)
	}

	if _, err := m.Register(uuid.New()); err != stream.ErrAtCapacity {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}

	// Freeing one slot admits a new session.
	sessions[0].Close()
	if _, err := m.Register(uuid.New()); err != nil {
		t.Fatalf("register after free failed: %v", err)
	}
	if m.ActiveSessions() != 3 {
		t.Fatalf("expected 3 active, got %d", m.ActiveSessions())
	}
}

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	s, err := m.Register(uuid.New())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Queue size is 4; push 10 without a consumer. The newest must always
	// be admitted at the expense of the oldest.
	for i := int64(1); i <= 10; i++ {
		balance := i * 100
		if !s.Enqueue(stream.Event{Type: stream.EventBalanceUpdate, Balance: &balance, Timestamp: time.Now()}) {
			t.Fatalf("event %d rejected by open session", i)
		}
	}

	var received []stream.Event
drain:
	for {
		select {
		case ev := <-s.Events():
			received = append(received, ev)
		default:
			break drain
		}
	}

	if len(received) != 4 {
		t.Fatalf("expected a full queue of 4 events, got %d", len(received))
	}
	// The survivors are the newest four, in order.
	for i, ev := range received {
		want := int64(7+i) * 100
		if ev.Balance == nil || *ev.Balance != want {
			t.Fatalf("event %d: expected balance %d, got %+v", i, want, ev)
		}
	}

	if !s.TakeWarning() {
		t.Fatal("overflow did not raise the dropped-events warning")
	}
	// The warning fires once per session.
	if s.TakeWarning() {
		t.Fatal("warning raised twice")
	}
}

func TestEnqueueSingleOverflowKeepsNewest(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	s, err := m.Register(uuid.New())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		balance := i * 100
		s.Enqueue(stream.Event{Type: stream.EventBalanceUpdate, Balance: &balance, Timestamp: time.Now()})
	}

	var balances []int64
drain:
	for {
		select {
		case ev := <-s.Events():
			if ev.Balance != nil {
				balances = append(balances, *ev.Balance)
			}
		default:
			break drain
		}
	}

	if len(balances) != 4 {
		t.Fatalf("expected 4 surviving events, got %d", len(balances))
	}
	if balances[0] != 200 {
		t.Fatalf("oldest event should have been evicted, head is %d", balances[0])
	}
	if balances[len(balances)-1] != 500 {
		t.Fatalf("newest event (balance 500) was dropped on overflow, tail is %d", balances[len(balances)-1])
	}
	if !s.TakeWarning() {
		t.Fatal("overflow did not raise the dropped-events warning")
	}
}

func TestPublishBalanceUpdateReachesSession(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	userID := uuid.New()
	s, err := m.Register(userID)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	m.PublishBalanceUpdate(userID, 97000, 97000, "MNFY|STRM|1")
	// An update for someone else must not leak in.
	m.PublishBalanceUpdate(uuid.New(), 55555, 55555, "MNFY|STRM|2")

	select {
	case ev := <-s.Events():
		if ev.Type != stream.EventBalanceUpdate {
			t.Fatalf("expected balance_update, got %s", ev.Type)
		}
		if ev.Balance == nil || *ev.Balance != 97000 {
			t.Fatalf("wrong balance in event: %+v", ev)
		}
		if ev.Reference != "MNFY|STRM|1" {
			t.Fatalf("wrong reference: %s", ev.Reference)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestCloseIsIdempotentAndConcurrent(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	userID := uuid.New()
	s, err := m.Register(userID)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	if m.HasSession(userID) {
		t.Fatal("session still registered after close")
	}
	if m.ActiveSessions() != 0 {
		t.Fatalf("expected 0 active, got %d", m.ActiveSessions())
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestReconnectDoesNotEvictNewSession(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	userID := uuid.New()
	old, err := m.Register(userID)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	old.Close()

	fresh, err := m.Register(userID)
	if err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}

	// Closing the stale session again must not unregister the fresh one.
	old.Close()
	if !m.HasSession(userID) {
		t.Fatal("fresh session evicted by stale close")
	}
	fresh.Close()
}

func TestEnqueueAfterCloseRejected(t *testing.T) {
	m := stream.NewManager(testConfig(), nil)
	defer m.Shutdown()

	s, err := m.Register(uuid.New())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	s.Close()

	if s.Enqueue(stream.Event{Type: stream.EventHeartbeat, Timestamp: time.Now()}) {
		t.Fatal("closed session accepted an event")
	}
}
