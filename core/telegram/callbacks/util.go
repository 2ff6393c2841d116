// Package callbacks decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits callback data of the form "\f<unique>|<payload>" into the
// unique key and payload. Telebot fills Unique itself when the button's
// endpoint is registered; the generic OnCallback route only sees Data.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ = strings.Cut(raw, "|")
	key = strings.TrimSpace(key)
	if cb.Unique != "" {
		key, payload = cb.Unique, cb.Data
	}
	return key, payload
}

// Key returns the unique key of the update's callback.
func Key(c tele.Context) string {
	key, _ := Parse(c.Callback())
	return key
}

// Payload returns the payload of the update's callback.
func Payload(c tele.Context) string {
	_, payload := Parse(c.Callback())
	return payload
}
