package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/sealbid/core/config"

	tele "gopkg.in/telebot.v4"
)

const testToken = "123:abc"

// fakeBotAPI answers the Bot API methods RunTelegram touches. getUpdates is
// delegated to the test.
type fakeBotAPI struct {
	updates    func(offset string) (int, string)
	getUpdates atomic.Int64
	deletes    atomic.Int64
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Seal","username":"sealbid_test_bot"}}`))
	case "deleteWebhook":
		f.deletes.Add(1)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	case "getUpdates":
		f.getUpdates.Add(1)
		var params map[string]string
		_ = json.NewDecoder(r.Body).Decode(&params)
		code, body := f.updates(params["offset"])
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func testRunConfig(apiURL string, maxRetries int, policy string) *coreconfig.Config {
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = testToken
	cfg.Telegram.APIURL = apiURL
	cfg.Telegram.LongPollTimeoutSeconds = 1
	cfg.Polling = coreconfig.PollingConfig{
		RetryBaseMS: 1,
		RetryMaxMS:  50,
		MaxRetries:  maxRetries,
		OnExhausted: policy,
	}
	return cfg
}

func TestRunTelegramExitsAfterConflictRetries(t *testing.T) {
	api := &fakeBotAPI{updates: func(string) (int, string) {
		return http.StatusConflict, `{"ok":false,"error_code":409,"description":"Conflict: terminated by other getUpdates request; make sure that only one bot instance is running"}`
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	err := RunTelegram(ctx, RunOptions{Config: testRunConfig(srv.URL, 2, coreconfig.OnExhaustedExit)})
	if !errors.Is(err, ErrConflictRetriesExhausted) {
		t.Fatalf("RunTelegram = %v, want ErrConflictRetriesExhausted", err)
	}
	if took := time.Since(start); took > 5*time.Second {
		t.Fatalf("exhaustion took %s", took)
	}
	// one initial poll plus one per restart; the poller pauses between errors
	if n := api.getUpdates.Load(); n < 3 || n > 6 {
		t.Fatalf("getUpdates calls = %d, want about 3", n)
	}
	// start, two restarts, shutdown
	if n := api.deletes.Load(); n != 4 {
		t.Fatalf("deleteWebhook calls = %d, want 4", n)
	}
}

func TestRunTelegramDeliversUpdates(t *testing.T) {
	api := &fakeBotAPI{updates: func(offset string) (int, string) {
		if offset == "1" {
			return http.StatusOK, `{"ok":true,"result":[{"update_id":1,"message":{"message_id":10,"date":1700000000,` +
				`"chat":{"id":7,"type":"private"},"from":{"id":7,"first_name":"Ann"},"text":"/start",` +
				`"entities":[{"type":"bot_command","offset":0,"length":6}]}}]}`
		}
		time.Sleep(20 * time.Millisecond)
		return http.StatusOK, `{"ok":true,"result":[]}`
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	handled := make(chan int64, 1)
	opts := RunOptions{
		Config: testRunConfig(srv.URL, 3, coreconfig.OnExhaustedExit),
		Routes: []Route{{Endpoint: "/start", Handler: func(c tele.Context) error {
			once.Do(func() { handled <- c.Chat().ID })
			return nil
		}}},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- RunTelegram(ctx, opts) }()

	select {
	case chatID := <-handled:
		if chatID != 7 {
			t.Fatalf("chat id = %d, want 7", chatID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("update was not dispatched")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("RunTelegram: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunTelegram did not stop")
	}
}

func TestUpdatePollerPausesOnErrors(t *testing.T) {
	api := &fakeBotAPI{updates: func(string) (int, string) {
		return http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	var seen atomic.Int64
	poller := BuildPoller(time.Second, func(error) { seen.Add(1) })
	poller.ErrorPause = 50 * time.Millisecond

	bot, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: testToken, Poller: poller})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	go bot.Start()
	time.Sleep(300 * time.Millisecond)
	bot.Stop()

	calls := api.getUpdates.Load()
	if calls == 0 || calls > 10 {
		t.Fatalf("getUpdates calls = %d, want a handful", calls)
	}
	if seen.Load() == 0 {
		t.Fatal("errors were not reported")
	}
}
