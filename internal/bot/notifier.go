package bot

import (
	"context"

	"github.com/m3rciful/sealbid/core/logger"
	"github.com/m3rciful/sealbid/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// messageSender is the part of *tele.Bot used to push chat messages.
type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// chatNotifier delivers bid progress to a chat through the outbound
// dispatcher. Messages for one chat share a dispatcher shard and keep their
// order; without a dispatcher they are sent inline.
type chatNotifier struct {
	bot  messageSender
	disp *sender.Dispatcher
}

var sendOpts = &tele.SendOptions{ParseMode: tele.ModeMarkdown, DisableWebPagePreview: true}

func (n *chatNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	run := func() error {
		_, err := n.bot.Send(tele.ChatID(chatID), text, sendOpts)
		return err
	}
	if n.disp == nil {
		return run()
	}
	return n.disp.Enqueue(logger.WithChatID(ctx, chatID), "notify", "sendMessage", run)
}
