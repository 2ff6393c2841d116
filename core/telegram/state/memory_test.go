package state

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(ttl time.Duration) (*MemoryManager, *clock) {
	m := NewMemoryManager(ttl)
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	m.now = c.now
	return m, c
}

func TestStateLifecycle(t *testing.T) {
	m, c := newTestManager(time.Minute)

	if m.InProgress(1) {
		t.Fatal("new user should be idle")
	}
	m.SetState(1, StateAwaitingAmount)
	m.SetTemp(1, "chat_id", int64(99))
	if got := m.GetState(1); got != StateAwaitingAmount {
		t.Fatalf("state = %s", got)
	}
	if since, ok := m.Since(1); !ok || !since.Equal(c.t) {
		t.Fatalf("since = %v, %v", since, ok)
	}
	if v, ok := m.GetTempInt64(1, "chat_id"); !ok || v != 99 {
		t.Fatalf("temp = %d, %v", v, ok)
	}

	m.SetState(1, StateIdle)
	if m.InProgress(1) || m.Len() != 0 {
		t.Fatal("idle should drop the session")
	}
}

func TestSetTempOnIdleIsNoop(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	m.SetTemp(5, "k", 1)
	if _, ok := m.GetTemp(5, "k"); ok {
		t.Fatal("temp stored without a session")
	}
}

func TestExpiry(t *testing.T) {
	m, c := newTestManager(time.Minute)
	m.SetState(1, StateAwaitingAmount)
	m.SetState(2, StateAwaitingAmount)

	c.t = c.t.Add(30 * time.Second)
	m.SetState(2, StateAwaitingAmount)

	c.t = c.t.Add(45 * time.Second)
	if m.InProgress(1) {
		t.Fatal("user 1 should have expired")
	}
	if !m.InProgress(2) {
		t.Fatal("user 2 was refreshed and should still be active")
	}
	if _, ok := m.GetTemp(1, "x"); ok {
		t.Fatal("expired session exposed temp data")
	}

	if n := m.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
}

func TestNoTTLNeverExpires(t *testing.T) {
	m, c := newTestManager(0)
	m.SetState(1, StateAwaitingAmount)
	c.t = c.t.Add(24 * time.Hour)
	if !m.InProgress(1) || m.Sweep() != 0 {
		t.Fatal("session expired without a ttl")
	}
}

func TestExpiredSessionRestartsClean(t *testing.T) {
	m, c := newTestManager(time.Minute)
	m.SetState(1, StateAwaitingAmount)
	m.SetTemp(1, "k", "old")
	c.t = c.t.Add(2 * time.Minute)
	m.SetState(1, StateAwaitingAmount)
	if _, ok := m.GetTemp(1, "k"); ok {
		t.Fatal("expired temp data survived a new session")
	}
}
