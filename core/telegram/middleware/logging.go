package middleware

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/sealbid/core/logger"
	"github.com/m3rciful/sealbid/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/sealbid/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware attaches the request context to every update and logs a
// sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.NewRequestContext(c)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Int("update_id", upd.ID),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
	}
	switch {
	case upd.Callback != nil:
		attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(callbacks.Key(c), 128)))
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", payloadForLog(c.Text())))
	}
	return attrs
}

// payloadForLog keeps the command word only. Free text and command
// arguments may carry a bid amount.
func payloadForLog(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		return logger.SanitizeLimit(cmd, 64)
	}
	return fmt.Sprintf("<text len=%d>", len([]rune(text)))
}
