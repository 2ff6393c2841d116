// Package bot wires the auction service into Telegram commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/sealbid/core/config"
	"github.com/m3rciful/sealbid/core/logger"
	coretelegram "github.com/m3rciful/sealbid/core/telegram"
	"github.com/m3rciful/sealbid/core/telegram/commands"
	"github.com/m3rciful/sealbid/core/telegram/netutil"
	"github.com/m3rciful/sealbid/core/telegram/router"
	"github.com/m3rciful/sealbid/core/telegram/state"
	"github.com/m3rciful/sealbid/internal/auction"
	"github.com/m3rciful/sealbid/internal/bid"
	"github.com/m3rciful/sealbid/internal/chain"
	"github.com/m3rciful/sealbid/internal/fhe"
	"github.com/m3rciful/sealbid/internal/ledger"
)

const (
	cbBidCancel  = "bid_cancel"
	historyLimit = 5
	statusBudget = 15 * time.Second
)

// App owns the long-lived collaborators of the bot: one chain client, one
// encryption adapter and one session store per process.
type App struct {
	cfg      *coreconfig.Config
	store    ledger.Store
	chain    *chain.Client
	fhe      *fhe.Adapter
	sessions *state.MemoryManager
	reg      *coretelegram.Registry

	svc  *auction.Service
	base context.Context
}

// New dials the chain and prepares the encryption adapter. The adapter
// stays uninitialized until the first bid needs it.
func New(ctx context.Context, cfg *coreconfig.Config, store ledger.Store) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config provided")
	}
	if store == nil {
		store = ledger.NewMemoryStore()
	}

	client, err := chain.Dial(ctx, cfg.Chain)
	if err != nil {
		return nil, err
	}

	hc := netutil.NewHTTPClient(netutil.ClientOptions{Timeout: cfg.FHE.InitTimeout()})
	adapter := fhe.NewAdapter(fhe.NewRelayerFactory(cfg.FHE.RelayerURL, hc), cfg.FHE.InitTimeout())

	return &App{
		cfg:      cfg,
		store:    store,
		chain:    client,
		fhe:      adapter,
		sessions: state.NewMemoryManager(cfg.Bid.PendingTTL()),
		reg:      coretelegram.NewRegistry(),
		base:     context.Background(),
	}, nil
}

// TelegramRunOptions describes how the transport should run this app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if err := a.registerCommands(); err != nil {
		return coretelegram.RunOptions{}, err
	}
	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    a.reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, a.handleRateLimited),
		BuildRoutes: a.buildRoutes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) registerCommands() error {
	defs := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: a.handleStart, Description: "Welcome and overview"}},
		{"/bid", commands.Command{Handler: a.handleBid, Description: "Place a sealed bid", Usage: "/bid <amount>"}},
		{"/status", commands.Command{Handler: a.handleStatus, Description: "Auction status"}},
		{"/history", commands.Command{Handler: a.handleHistory, Description: "Your recent bids"}},
		{"/cancel", commands.Command{Handler: a.handleCancel, Description: "Cancel a pending bid"}},
		{"/help", commands.Command{Handler: a.handleHelp, Description: "How to bid"}},
		{"/fhe_reset", commands.Command{Handler: a.handleFHEReset, Description: "Reset the FHE adapter", AdminOnly: true, Hidden: true}},
	}
	for _, d := range defs {
		if err := a.reg.RegisterCommand(d.name, d.cmd); err != nil {
			return err
		}
	}
	if err := a.reg.RegisterCallback(cbBidCancel, a.handleCancelCallback); err != nil {
		return err
	}
	a.reg.SetTextFallback(a.handleUnknownText)
	a.sessions.Handle(state.StateAwaitingAmount, a.handleAmountReply)
	return nil
}

func (a *App) buildRoutes(rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	a.svc = auction.NewService(&chatNotifier{bot: rt.Bot, disp: rt.Dispatcher}, a.fhe, a.chain, a.store, auction.Options{
		Limits: bid.Limits{
			Min:    a.cfg.Bid.MinAmount,
			Max:    a.cfg.Bid.MaxAmount,
			Strict: a.cfg.Bid.Strict(),
		},
		Preflight:   a.cfg.Bid.PreflightEnabled(),
		ExplorerURL: a.cfg.Chain.ExplorerURL,
	})

	routes := router.CommandRoutes(rt.Registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.handleAdminReject,
	})
	routes = append(routes, router.CallbackRoute(rt.Registry))
	routes = append(routes, router.TextRoutes(a.sessions, rt.Registry)...)
	return routes, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.base = ctx
	go a.sessions.RunJanitor(ctx, time.Minute)

	logger.Info(ctx, "app", "app.wired",
		slog.String("contract", a.chain.Contract().Hex()),
		slog.String("wallet", logger.ShortAddr(a.chain.Wallet().Hex())),
		slog.String("chain_id", a.chain.ChainID().String()),
		slog.String("ledger", a.cfg.Ledger.Driver),
		slog.Bool("preflight", a.cfg.Bid.PreflightEnabled()),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	st := a.fhe.Status()
	logger.Info(ctx, "app", "app.stop",
		slog.String("fhe_state", st.State.String()),
		slog.Int("fhe_inits", st.Inits),
	)
	return nil
}

// Close releases the chain connection.
func (a *App) Close() {
	a.chain.Close()
}
