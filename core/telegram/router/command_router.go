package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/sealbid/core/logger"
	tg "github.com/m3rciful/sealbid/core/telegram"
	"github.com/m3rciful/sealbid/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes builds one route per registered command, in registration
// order. Admin-only commands are gated before the handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	defs := reg.ListCommands(false)
	routes := make([]tg.Route, 0, len(defs))
	for _, def := range defs {
		endpoint := "/" + def.Text
		_, cmd, ok := reg.LookupCommand(endpoint)
		if !ok {
			continue
		}
		name := normalizeHandlerName(endpoint)
		inner := cmd.Handler
		var h tele.HandlerFunc = func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), func() error { return inner(c) })
		}
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
