package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/sealbid/core/config"

	tele "gopkg.in/telebot.v4"
)

var errConflict = errors.New("telegram: Conflict: terminated by other getUpdates request; make sure that only one bot instance is running (409)")

type fakePoller struct {
	mu      sync.Mutex
	deletes []bool
	starts  int
	stopCh  chan struct{}
	started chan struct{}
}

func newFakePoller() *fakePoller {
	return &fakePoller{started: make(chan struct{}, 64)}
}

func (f *fakePoller) DeleteWebhook(_ context.Context, dropPending bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, dropPending)
	return nil
}

func (f *fakePoller) Start() {
	stop := make(chan struct{})
	f.mu.Lock()
	f.starts++
	f.stopCh = stop
	f.mu.Unlock()
	f.started <- struct{}{}
	<-stop
}

func (f *fakePoller) Stop() {
	f.mu.Lock()
	ch := f.stopCh
	f.mu.Unlock()
	close(ch)
}

func (f *fakePoller) snapshot() (int, []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, append([]bool(nil), f.deletes...)
}

func waitStarted(t *testing.T, f *fakePoller) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not start")
	}
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestManager(f *fakePoller, opts PollingOptions) (*PollingManager, *delayRecorder) {
	m := NewPollingManager(f, opts)
	rec := &delayRecorder{}
	m.sleep = rec.sleep
	fixed := time.Unix(0, 0)
	m.now = func() time.Time { return fixed }
	return m, rec
}

func TestPollingManagerRestartsWithBackoff(t *testing.T) {
	f := newFakePoller()
	m, rec := newTestManager(f, PollingOptions{
		RetryBase:  100 * time.Millisecond,
		RetryMax:   300 * time.Millisecond,
		MaxRetries: 10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	waitStarted(t, f)
	for i := 0; i < 4; i++ {
		m.ObserveError(errConflict)
		waitStarted(t, f)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := m.Restarts(); got != 4 {
		t.Fatalf("restarts = %d, want 4", got)
	}
	want := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	rec.mu.Lock()
	got := append([]time.Duration(nil), rec.delays...)
	rec.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delays = %v, want %v", got, want)
		}
	}

	starts, deletes := f.snapshot()
	if starts != 5 {
		t.Fatalf("starts = %d, want 5", starts)
	}
	if len(deletes) != 6 || !deletes[0] || deletes[len(deletes)-1] {
		t.Fatalf("unexpected deleteWebhook calls: %v", deletes)
	}
}

func TestPollingManagerExhaustedExit(t *testing.T) {
	f := newFakePoller()
	m, _ := newTestManager(f, PollingOptions{
		RetryBase:   time.Millisecond,
		RetryMax:    time.Millisecond,
		MaxRetries:  2,
		OnExhausted: coreconfig.OnExhaustedExit,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background()) }()

	waitStarted(t, f)
	m.ObserveError(errConflict)
	waitStarted(t, f)
	m.ObserveError(errConflict)
	waitStarted(t, f)
	m.ObserveError(errConflict)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConflictRetriesExhausted) {
			t.Fatalf("expected ErrConflictRetriesExhausted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
	if starts, _ := f.snapshot(); starts != 3 {
		t.Fatalf("starts = %d, want 3", starts)
	}
}

func TestPollingManagerExhaustedStop(t *testing.T) {
	f := newFakePoller()
	m, _ := newTestManager(f, PollingOptions{
		RetryBase:   time.Millisecond,
		RetryMax:    time.Millisecond,
		MaxRetries:  1,
		OnExhausted: coreconfig.OnExhaustedStop,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	waitStarted(t, f)
	m.ObserveError(errConflict)
	waitStarted(t, f)
	m.ObserveError(errConflict)

	select {
	case err := <-errCh:
		t.Fatalf("stop policy returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if starts, _ := f.snapshot(); starts != 2 {
		t.Fatalf("starts = %d, want 2", starts)
	}
}

func TestPollingManagerIgnoresOtherErrors(t *testing.T) {
	f := newFakePoller()
	m, _ := newTestManager(f, PollingOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	waitStarted(t, f)

	m.ObserveError(errors.New("telegram: Bad Gateway (502)"))
	m.ObserveError(nil)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-errCh

	if m.Restarts() != 0 {
		t.Fatalf("non-conflict errors caused %d restarts", m.Restarts())
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if _, deletes := f.snapshot(); len(deletes) != 2 {
		t.Fatalf("shutdown not idempotent: %v", deletes)
	}
}

func TestBackoff(t *testing.T) {
	m := NewPollingManager(newFakePoller(), PollingOptions{RetryBase: time.Second, RetryMax: 60 * time.Second})
	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		if got := m.Backoff(i + 1); got != w*time.Second {
			t.Errorf("Backoff(%d) = %s, want %s", i+1, got, w*time.Second)
		}
	}
}

func TestIsConflict(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errConflict, true},
		{&tele.Error{Code: 409, Description: "Conflict: can't use getUpdates method while webhook is active"}, true},
		{errors.New("telegram: Conflict: can't use getUpdates method while webhook is active; use deleteWebhook to delete the webhook first (409)"), true},
		{errors.New("telegram: Unauthorized (401)"), false},
		{errors.New("edit conflict in chat"), false},
	}
	for _, tc := range cases {
		if got := IsConflict(tc.err); got != tc.want {
			t.Errorf("IsConflict(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestDeleteWebhook(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotBody = r.PostForm.Get("drop_pending_updates")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	if err := deleteWebhook(context.Background(), srv.Client(), srv.URL, "123:abc", true); err != nil {
		t.Fatalf("deleteWebhook: %v", err)
	}
	if gotPath != "/bot123:abc/deleteWebhook" || gotBody != "true" {
		t.Fatalf("unexpected request path=%s drop=%s", gotPath, gotBody)
	}
}

func TestDeleteWebhookErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	err := deleteWebhook(context.Background(), srv.Client(), srv.URL, "123:secret", false)
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("token leaked: %v", err)
	}
}

func TestPollingManagerRestoresBudgetAfterQuietWindow(t *testing.T) {
	f := newFakePoller()
	m, _ := newTestManager(f, PollingOptions{
		RetryBase:   time.Millisecond,
		RetryMax:    time.Millisecond,
		MaxRetries:  1,
		OnExhausted: coreconfig.OnExhaustedExit,
	})
	var (
		clockMu sync.Mutex
		clock   = time.Unix(0, 0)
	)
	m.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		clockMu.Lock()
		clock = clock.Add(d)
		clockMu.Unlock()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background()) }()

	waitStarted(t, f)
	m.ObserveError(errConflict)
	waitStarted(t, f)

	// a short RetryMax must not restore the budget on its own
	advance(time.Second)
	m.ObserveError(errConflict)
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConflictRetriesExhausted) {
			t.Fatalf("expected ErrConflictRetriesExhausted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("budget was restored after one second")
	}

	f2 := newFakePoller()
	m2, _ := newTestManager(f2, PollingOptions{
		RetryBase:  time.Millisecond,
		RetryMax:   time.Millisecond,
		MaxRetries: 1,
	})
	m2.now = m.now
	ctx, cancel := context.WithCancel(context.Background())
	go func() { errCh <- m2.Run(ctx) }()

	waitStarted(t, f2)
	m2.ObserveError(errConflict)
	waitStarted(t, f2)
	advance(2 * minQuietWindow)
	m2.ObserveError(errConflict)
	waitStarted(t, f2)

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := m2.Restarts(); got != 2 {
		t.Fatalf("restarts = %d, want 2", got)
	}
}
