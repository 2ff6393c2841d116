package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/sealbid/core/logger"
	tghelpers "github.com/m3rciful/sealbid/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MemoryManager keeps sessions in process memory.
type MemoryManager struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[int64]*Session
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager constructs an in-memory Manager. A non-positive ttl
// disables expiry.
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	return &MemoryManager{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]*Session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

func (m *MemoryManager) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && s.State != StateIdle && now.Sub(s.Since) > m.ttl
}

// live returns the session if present and not expired. Callers hold m.mu.
func (m *MemoryManager) live(userID int64) (*Session, bool) {
	s, ok := m.sessions[userID]
	if !ok || m.expired(s, m.now()) {
		return nil, false
	}
	return s, true
}

// SetState moves the user to st and restarts the expiry clock. Setting
// StateIdle drops the session.
func (m *MemoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == StateIdle {
		delete(m.sessions, userID)
		return
	}
	s, ok := m.live(userID)
	if !ok {
		s = &Session{TempData: make(map[string]any)}
		m.sessions[userID] = s
	}
	s.State = st
	s.Since = m.now()
}

// GetState returns the user's state, or StateIdle when there is none or it
// expired.
func (m *MemoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.live(userID); ok {
		return s.State
	}
	return StateIdle
}

// Since reports when the current state was entered.
func (m *MemoryManager) Since(userID int64) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.live(userID); ok {
		return s.Since, true
	}
	return time.Time{}, false
}

// Clear removes the entire session for a user.
func (m *MemoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// SetTemp stores a value on an active session. It is a no-op for idle users.
func (m *MemoryManager) SetTemp(userID int64, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.live(userID); ok {
		s.TempData[key] = value
	}
}

// GetTemp retrieves a temporary value by key for the given user session.
func (m *MemoryManager) GetTemp(userID int64, key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.live(userID)
	if !ok {
		return nil, false
	}
	v, ok := s.TempData[key]
	return v, ok
}

// GetTempInt64 retrieves a temporary value by key and asserts it as int64.
func (m *MemoryManager) GetTempInt64(userID int64, key string) (int64, bool) {
	val, found := m.GetTemp(userID, key)
	if !found {
		return 0, false
	}
	v, ok := val.(int64)
	return v, ok
}

// Handle associates a state with its handler.
func (m *MemoryManager) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.handlers[st] = h
	m.mu.Unlock()
}

// InProgress reports whether the user currently has an active FSM state.
func (m *MemoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

// ManagerHandler executes the handler registered for the user's current state.
func (m *MemoryManager) ManagerHandler(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	current := m.GetState(user.ID)
	logger.Debug(tghelpers.BuildContext(c), "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.String("state", string(current)),
	)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return handler(c)
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (m *MemoryManager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug(ctx, "tg", "fsm.sweep", slog.Int("removed", n))
			}
		}
	}
}
