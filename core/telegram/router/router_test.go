package router

import (
	"errors"
	"fmt"
	"testing"

	tg "github.com/m3rciful/sealbid/core/telegram"
	"github.com/m3rciful/sealbid/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type codedErr struct{}

func (codedErr) Error() string { return "boom" }
func (codedErr) Code() string  { return "fhe encrypt" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{codedErr{}, "FHE_ENCRYPT"},
		{fmt.Errorf("wrap: %w", codedErr{}), "FHE_ENCRYPT"},
		{&plainErr{}, "PLAINERR"},
		{errors.New("x"), "ERRORSTRING"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Errorf("deriveErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/Bid":        "bid",
		"":            "unknown",
		" fhe reset ": "fhe_reset",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

type awaitingFSM struct {
	active  bool
	handled []string
}

func (f *awaitingFSM) InProgress(int64) bool { return f.active }

func (f *awaitingFSM) ManagerHandler(c tele.Context) error {
	f.handled = append(f.handled, c.Text())
	f.active = false
	return nil
}

func textContext(t *testing.T, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		ID:     5,
		Text:   text,
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
	}})
}

func TestTextRoutesConversationSkipsCommands(t *testing.T) {
	var routed []string
	reg := tg.NewRegistry()
	if err := reg.RegisterCommand("/help", commands.Command{
		Description: "help",
		Handler:     func(tele.Context) error { routed = append(routed, "help"); return nil },
	}); err != nil {
		t.Fatal(err)
	}
	reg.SetTextFallback(func(c tele.Context) error {
		routed = append(routed, "fallback:"+c.Text())
		return nil
	})

	cases := []struct {
		text       string
		active     bool
		wantFSM    []string
		wantRouted []string
		wantActive bool
	}{
		{"250", true, []string{"250"}, nil, false},
		{"/unknown", true, nil, []string{"fallback:/unknown"}, true},
		{" /bid@other_bot", true, nil, []string{"fallback: /bid@other_bot"}, true},
		{"help", true, []string{"help"}, nil, false},
		{"help", false, nil, []string{"help"}, false},
		{"hello", false, nil, []string{"fallback:hello"}, false},
	}
	for _, tc := range cases {
		routed = nil
		fsm := &awaitingFSM{active: tc.active}
		handler := TextRoutes(fsm, reg)[0].Handler
		if err := handler(textContext(t, tc.text)); err != nil {
			t.Fatalf("%q: %v", tc.text, err)
		}
		if fmt.Sprint(fsm.handled) != fmt.Sprint(tc.wantFSM) || fmt.Sprint(routed) != fmt.Sprint(tc.wantRouted) {
			t.Errorf("%q: fsm=%v routed=%v, want fsm=%v routed=%v", tc.text, fsm.handled, routed, tc.wantFSM, tc.wantRouted)
		}
		if fsm.active != tc.wantActive {
			t.Errorf("%q: conversation active = %v, want %v", tc.text, fsm.active, tc.wantActive)
		}
	}
}
