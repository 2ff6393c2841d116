package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/m3rciful/sealbid/core/logger"
	tghelpers "github.com/m3rciful/sealbid/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

var panicHook atomic.Pointer[func(any)]

// SetPanicHook installs fn to run after a handler panic was recovered and
// logged. Passing nil removes it.
func SetPanicHook(fn func(any)) {
	if fn == nil {
		panicHook.Store(nil)
		return
	}
	panicHook.Store(&fn)
}

// RecoverMiddleware catches handler panics, logs them with a stack, and
// hands them to the panic hook so the process can shut down cleanly.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := tghelpers.BuildContext(c)
			logger.TG.LogAttrs(ctx, slog.LevelError, "panic recovered",
				slog.String("event", "tg.panic"),
				slog.String("err", logger.Redact(fmt.Sprint(r))),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", r)
			if hook := panicHook.Load(); hook != nil {
				(*hook)(r)
			}
		}()
		return next(c)
	}
}
