package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/sealbid/core/config"
	"github.com/m3rciful/sealbid/core/logger"
)

// PollingAPI is the slice of the bot the manager drives. Start blocks until
// Stop is called; Stop must only be called while Start runs.
type PollingAPI interface {
	DeleteWebhook(ctx context.Context, dropPending bool) error
	Start()
	Stop()
}

const minQuietWindow = time.Minute

// PollingOptions configures conflict handling.
type PollingOptions struct {
	RetryBase   time.Duration
	RetryMax    time.Duration
	MaxRetries  int
	Settle      time.Duration
	OnExhausted string
}

// PollingOptionsFrom maps configuration onto PollingOptions.
func PollingOptionsFrom(cfg coreconfig.PollingConfig) PollingOptions {
	return PollingOptions{
		RetryBase:   cfg.RetryBase(),
		RetryMax:    cfg.RetryMax(),
		MaxRetries:  cfg.MaxRetries,
		Settle:      cfg.Settle(),
		OnExhausted: cfg.OnExhausted,
	}
}

// PollingManager owns the only long-polling loop of the process. It clears
// any webhook before polling and restarts polling with exponential backoff
// when Telegram reports a getUpdates conflict.
type PollingManager struct {
	api  PollingAPI
	opts PollingOptions

	conflicts chan error
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	closing  bool
	restarts int

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewPollingManager applies defaults to zero options.
func NewPollingManager(api PollingAPI, opts PollingOptions) *PollingManager {
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryMax < opts.RetryBase {
		opts.RetryMax = 60 * opts.RetryBase
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.OnExhausted == "" {
		opts.OnExhausted = coreconfig.OnExhaustedExit
	}
	return &PollingManager{
		api:       api,
		opts:      opts,
		conflicts: make(chan error, 1),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the delay before restart number attempt (1-based).
func (m *PollingManager) Backoff(attempt int) time.Duration {
	d := m.opts.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= m.opts.RetryMax {
			return m.opts.RetryMax
		}
	}
	if d > m.opts.RetryMax {
		return m.opts.RetryMax
	}
	return d
}

// quietWindow is how long polling must run without a conflict before the
// retry budget is restored.
func (m *PollingManager) quietWindow() time.Duration {
	return max(2*m.opts.RetryMax, minQuietWindow)
}

// Restarts reports how many times polling was restarted after a conflict.
func (m *PollingManager) Restarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

// ObserveError receives transport errors from the bot. It never blocks:
// it runs on the poller goroutine.
func (m *PollingManager) ObserveError(err error) {
	if !IsConflict(err) {
		return
	}
	m.mu.Lock()
	active := m.running && !m.closing
	m.mu.Unlock()
	if !active {
		return
	}
	select {
	case m.conflicts <- err:
	default:
	}
}

// Run clears the webhook, starts polling, and supervises conflicts until
// ctx is done. It returns ErrConflictRetriesExhausted when the retry budget
// runs out under the exit policy, and nil otherwise.
func (m *PollingManager) Run(ctx context.Context) error {
	m.deleteWebhook(ctx, true, "start")
	if err := m.sleep(ctx, m.opts.Settle); err != nil {
		return m.finish(nil)
	}
	m.startPolling()
	logger.Transport.Info("polling started",
		slog.String("event", "tg.polling.start"),
		slog.Int("max_retries", m.opts.MaxRetries),
		slog.Duration("retry_base", m.opts.RetryBase),
		slog.Duration("retry_max", m.opts.RetryMax),
	)

	var (
		count        int
		lastConflict time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return m.finish(nil)
		case cerr := <-m.conflicts:
			now := m.now()
			if !lastConflict.IsZero() && now.Sub(lastConflict) > m.quietWindow() {
				count = 0
			}
			lastConflict = now
			count++

			if count > m.opts.MaxRetries {
				logger.Transport.Error("conflict retries exhausted",
					slog.String("event", "tg.polling.exhausted"),
					slog.Int("retry", count-1),
					slog.String("policy", m.opts.OnExhausted),
					slog.String("err", logger.Redact(cerr.Error())),
				)
				m.stopPolling()
				if m.opts.OnExhausted == coreconfig.OnExhaustedStop {
					<-ctx.Done()
					return m.finish(nil)
				}
				return m.finish(ErrConflictRetriesExhausted)
			}

			delay := m.Backoff(count)
			logger.Transport.Warn("getUpdates conflict",
				slog.String("event", "tg.polling.conflict"),
				slog.Int("retry", count),
				slog.Int64("delay_ms", delay.Milliseconds()),
				slog.String("err", logger.Redact(cerr.Error())),
			)
			m.stopPolling()
			m.drain()
			m.deleteWebhook(ctx, false, "restart")
			if err := m.sleep(ctx, delay); err != nil {
				return m.finish(nil)
			}
			m.startPolling()
			m.mu.Lock()
			m.restarts++
			m.mu.Unlock()
			logger.Transport.Info("polling restarted",
				slog.String("event", "tg.polling.restart"),
				slog.Int("retry", count),
			)
		}
	}
}

func (m *PollingManager) finish(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	_ = m.Shutdown(ctx)
	return err
}

func (m *PollingManager) drain() {
	for {
		select {
		case <-m.conflicts:
		default:
			return
		}
	}
}

func (m *PollingManager) startPolling() {
	m.mu.Lock()
	if m.running || m.closing {
		m.mu.Unlock()
		return
	}
	done := make(chan struct{})
	m.running = true
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.api.Start()
	}()
}

func (m *PollingManager) stopPolling() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done := m.done
	m.mu.Unlock()

	m.api.Stop()
	<-done
}

func (m *PollingManager) deleteWebhook(ctx context.Context, dropPending bool, phase string) {
	start := time.Now()
	err := m.api.DeleteWebhook(ctx, dropPending)
	if err != nil {
		logger.Transport.Warn("failed to delete webhook",
			slog.String("event", "tg.webhook.delete"),
			slog.String("phase", phase),
			slog.Bool("drop_pending", dropPending),
			slog.String("err", logger.Redact(err.Error())),
		)
		return
	}
	logger.Transport.Info("webhook deleted",
		slog.String("event", "tg.webhook.delete"),
		slog.String("phase", phase),
		slog.Bool("drop_pending", dropPending),
		slog.Duration("duration", logger.Took(start)),
	)
}

// Shutdown stops polling and clears the webhook without dropping pending
// updates. Later calls return the first result.
func (m *PollingManager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.closing = true
		m.mu.Unlock()

		m.stopPolling()
		err := m.api.DeleteWebhook(ctx, false)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Transport.Warn("failed to delete webhook",
				slog.String("event", "tg.webhook.delete"),
				slog.String("phase", "shutdown"),
				slog.String("err", logger.Redact(err.Error())),
			)
		}
		m.shutdownErr = err
		logger.Transport.Info("polling stopped",
			slog.String("event", "tg.polling.stop"),
			slog.Int("restarts", m.Restarts()),
		)
	})
	return m.shutdownErr
}
