// Package keyboard builds reply markups shared by handlers.
package keyboard

import tele "gopkg.in/telebot.v4"

// CancelLabel is the default caption of cancel buttons.
const CancelLabel = "❌ Cancel"

// Cancel returns a single-button inline keyboard whose button calls back
// unique with payload "cancel". An empty label uses CancelLabel.
func Cancel(unique, label string) *tele.ReplyMarkup {
	if label == "" {
		label = CancelLabel
	}
	markup := &tele.ReplyMarkup{}
	btn := markup.Data(label, unique, "cancel")
	markup.Inline(markup.Row(btn))
	return markup
}
