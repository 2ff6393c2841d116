package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/sealbid/core/config"
	"github.com/m3rciful/sealbid/core/logger"
	tghelpers "github.com/m3rciful/sealbid/core/telegram/helpers"
	"github.com/m3rciful/sealbid/core/telegram/middleware"
	tgsender "github.com/m3rciful/sealbid/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// ErrHandlerPanic is returned by RunTelegram after a handler panicked and
// the bot was shut down.
var ErrHandlerPanic = errors.New("telegram: handler panicked")

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	// Routes may be built lazily once the bot exists.
	Routes      []Route
	BuildRoutes func(rt Runtime) ([]Route, error)

	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
	Polling    *PollingManager
}

type botPoller struct {
	bot    *tele.Bot
	client *http.Client
	apiURL string
	token  string
}

func (p botPoller) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return deleteWebhook(ctx, p.client, p.apiURL, p.token, dropPending)
}

func (p botPoller) Start() { p.bot.Start() }
func (p botPoller) Stop()  { p.bot.Stop() }

// RunTelegram composes and runs a Telegram bot until the provided context is
// done, conflict retries run out, or a handler panics.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	middleware.SetPanicHook(func(any) { cancel(ErrHandlerPanic) })
	defer middleware.SetPanicHook(nil)

	longPoll := longPollTimeout(cfg.Telegram.LongPollTimeoutSeconds)
	client := BuildHTTPClient(longPoll)

	var manager *PollingManager
	pollErr := func(err error) {
		switch {
		case errors.Is(err, context.Canceled):
		case IsConflict(err):
			if manager != nil {
				manager.ObserveError(err)
			}
		default:
			logger.Transport.Warn("transport error",
				slog.String("event", "tg.transport.error"),
				slog.String("err", logger.Redact(err.Error())),
			)
		}
	}
	settings := tele.Settings{
		URL:    cfg.Telegram.APIURL,
		Token:  cfg.Telegram.Token,
		Poller: BuildPoller(longPoll, pollErr),
		Client: client,
		OnError: func(err error, c tele.Context) {
			if c == nil {
				pollErr(err)
				return
			}
			ctx := tghelpers.BuildContext(c)
			logger.TG.LogAttrs(ctx, slog.LevelError, "handler.error",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(logger.Redact(err.Error()), 256)),
			)
		},
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %s", logger.Redact(err.Error()))
	}
	manager = NewPollingManager(botPoller{
		bot:    bot,
		client: client,
		apiURL: cfg.Telegram.APIURL,
		token:  cfg.Telegram.Token,
	}, PollingOptionsFrom(cfg.Polling))

	logger.TG.Info("polling mode",
		slog.String("event", "mode"),
		slog.String("mode", "polling"),
		slog.String("bot", bot.Me.Username),
		slog.Int("timeout_seconds", int(longPoll/time.Second)),
		slog.Duration("duration", logger.Took(buildStart)),
	)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	useHelperDispatcher := !opts.DisableHelperDispatcher
	if useHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	closeDispatcher := func() {
		dispatcher.Close()
		if useHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Registry:   reg,
		Polling:    manager,
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	routes := opts.Routes
	if opts.BuildRoutes != nil {
		extra, err := opts.BuildRoutes(rt)
		if err != nil {
			closeDispatcher()
			return err
		}
		routes = append(routes, extra...)
	}
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	SetupCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			closeDispatcher()
			return err
		}
	}

	runErr := manager.Run(ctx)
	if runErr == nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrHandlerPanic) {
			runErr = cause
		}
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	closeDispatcher()

	if runErr != nil {
		return runErr
	}
	return stopErr
}

func longPollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
