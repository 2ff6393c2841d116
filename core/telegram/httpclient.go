package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/sealbid/core/telegram/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Bot API calls. The header
// timeout leaves room for a full long-poll cycle.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	return netutil.NewHTTPClient(netutil.ClientOptions{
		Timeout:               longPoll + 30*time.Second,
		ResponseHeaderTimeout: longPoll + 10*time.Second,
	})
}
