package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/sealbid/core/buildinfo"
	"github.com/m3rciful/sealbid/core/logger"
	tghelpers "github.com/m3rciful/sealbid/core/telegram/helpers"
	"github.com/m3rciful/sealbid/core/telegram/keyboard"
	"github.com/m3rciful/sealbid/core/telegram/state"
	"github.com/m3rciful/sealbid/internal/auction"

	tele "gopkg.in/telebot.v4"
)

// requestContext carries the update's log metadata on the app lifetime
// context, so long bids stop when the process shuts down.
func (a *App) requestContext(c tele.Context) context.Context {
	req := tghelpers.BuildContext(c)
	ctx := logger.WithRID(a.base, logger.RIDFrom(req))
	ctx = logger.WithUpdateMeta(ctx, logger.UpdateIDFrom(req), logger.UserIDFrom(req), logger.ChatIDFrom(req))
	if h := logger.HandlerFrom(req); h != "" {
		ctx = logger.WithHandler(ctx, h)
	}
	return logger.WithLogger(ctx, logger.FromContext(req))
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func (a *App) handleStart(c tele.Context) error {
	return tghelpers.SendMD(c, welcomeText(displayName(c.Sender()), a.chain.Contract(), a.chain.Wallet(), a.chain.ChainID()))
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendMD(c, helpText(a.svc.Limits(), a.cfg.Bid.PendingTTL()))
}

func (a *App) handleStatus(c tele.Context) error {
	if err := tghelpers.SendText(c, msgStatusLoading); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(a.requestContext(c), statusBudget)
	defer cancel()

	snap, err := a.chain.Snapshot(ctx)
	if err != nil {
		logger.Warn(ctx, "chain", "status.read_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	return tghelpers.SendMD(c, statusText(snap, err, a.fhe.Status(), buildinfo.String()))
}

// handleBid places a bid from "/bid <amount>" or, without an amount, opens
// a conversation that waits for the next text message.
func (a *App) handleBid(c tele.Context) error {
	user := c.Sender()
	if user == nil || c.Chat() == nil {
		return nil
	}
	fields := strings.Fields(c.Message().Payload)
	if len(fields) == 0 {
		a.sessions.SetState(user.ID, state.StateAwaitingAmount)
		a.sessions.SetTemp(user.ID, "chat_id", c.Chat().ID)
		return tghelpers.SendMD(c, msgAskAmount, keyboard.Cancel(cbBidCancel, ""))
	}
	a.sessions.Clear(user.ID)
	return a.placeBid(c, fields[0])
}

func (a *App) handleAmountReply(c tele.Context) error {
	user := c.Sender()
	chatID, ok := a.sessions.GetTempInt64(user.ID, "chat_id")
	a.sessions.Clear(user.ID)
	if !ok || c.Chat() == nil || chatID != c.Chat().ID {
		return a.handleUnknownText(c)
	}
	return a.placeBid(c, strings.TrimSpace(c.Text()))
}

func (a *App) placeBid(c tele.Context, raw string) error {
	ctx := a.requestContext(c)
	a.svc.PlaceBid(ctx, auction.Request{
		ChatID:   c.Chat().ID,
		UserID:   c.Sender().ID,
		Username: displayName(c.Sender()),
		Raw:      raw,
	})
	return nil
}

func (a *App) handleCancel(c tele.Context) error {
	user := c.Sender()
	if user == nil || !a.sessions.InProgress(user.ID) {
		return tghelpers.SendText(c, msgNothingPending)
	}
	a.sessions.Clear(user.ID)
	return tghelpers.SendText(c, msgBidCancelled)
}

func (a *App) handleCancelCallback(c tele.Context) error {
	if user := c.Sender(); user != nil {
		a.sessions.Clear(user.ID)
	}
	_ = c.Respond(&tele.CallbackResponse{Text: "Cancelled"})
	return tghelpers.EditOrSendMD(c, msgBidCancelled)
}

func (a *App) handleHistory(c tele.Context) error {
	ctx := a.requestContext(c)
	recs, err := a.store.ListByChat(ctx, c.Chat().ID, historyLimit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return tghelpers.SendMD(c, historyText(recs, a.cfg.Chain.ExplorerURL))
}

func (a *App) handleFHEReset(c tele.Context) error {
	prev := a.fhe.Reset()
	return tghelpers.SendText(c, fmt.Sprintf("🔄 FHE adapter reset (was %s). The next bid initializes it again.", prev))
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, msgUnknownText)
}

func (a *App) handleAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminOnly)
}

func (a *App) handleRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgRateLimited})
	}
	return tghelpers.SendText(c, msgRateLimited)
}
