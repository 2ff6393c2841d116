package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const statsKey = "reply_stats"

// replyStats counts replies of one update. Sends may finish on dispatcher
// workers after the handler returned, hence the atomics.
type replyStats struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

// countingContext records successful replies sent through the context.
type countingContext struct {
	tele.Context
	stats *replyStats
}

func (c countingContext) count(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	c.stats.messages.Add(1)
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				c.stats.keyboard.Store(true)
			}
		case *tele.ReplyMarkup:
			if v != nil {
				c.stats.keyboard.Store(true)
			}
		}
	}
	return nil
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware instruments the context with reply counters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		stats := &replyStats{}
		c.Set(statsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// GetCounters reports how many replies the update produced so far and
// whether any of them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	stats, ok := c.Get(statsKey).(*replyStats)
	if !ok {
		return 0, false
	}
	return int(stats.messages.Load()), stats.keyboard.Load()
}
