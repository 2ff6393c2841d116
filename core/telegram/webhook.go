package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/sealbid/core/logger"
)

const webhookTimeout = 10 * time.Second

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// deleteWebhook calls deleteWebhook on the Bot API so long polling owns the
// update stream. Errors never contain the token.
func deleteWebhook(ctx context.Context, client *http.Client, apiURL, token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/deleteWebhook", strings.TrimRight(apiURL, "/"), token)
	form := url.Values{"drop_pending_updates": {fmt.Sprint(dropPending)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("deleteWebhook: %s", logger.Redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deleteWebhook: %s", logger.Redact(err.Error()))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out apiResponse
	if jsonErr := json.Unmarshal(body, &out); jsonErr != nil || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = resp.Status
		}
		return fmt.Errorf("deleteWebhook: %s", desc)
	}
	return nil
}
