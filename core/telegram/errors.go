package telegram

import (
	"errors"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrConflictRetriesExhausted is returned by PollingManager.Run when another
// process kept polling the same token past the retry budget.
var ErrConflictRetriesExhausted = errors.New("telegram: getUpdates conflict retries exhausted")

// IsConflict reports whether err is the 409 Telegram returns when a second
// getUpdates consumer or an active webhook competes for the update stream.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "terminated by other getupdates") {
		return true
	}
	return strings.Contains(msg, "conflict") && strings.Contains(msg, "(409)")
}
