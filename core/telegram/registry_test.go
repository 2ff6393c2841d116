package telegram

import (
	"testing"

	"github.com/m3rciful/sealbid/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	must := func(name string, cmd commands.Command) {
		t.Helper()
		if err := reg.RegisterCommand(name, cmd); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	must("/start", commands.Command{Handler: noop, Description: "Welcome"})
	must("/bid", commands.Command{Handler: noop, Description: "Bid", Aliases: []string{"offer"}})
	must("/fhe_reset", commands.Command{Handler: noop, Description: "Reset", AdminOnly: true, Hidden: true})

	if err := reg.RegisterCommand("/bid", commands.Command{Handler: noop, Description: "dup"}); err == nil {
		t.Fatal("duplicate registration accepted")
	}
	if err := reg.RegisterCommand("status", commands.Command{Handler: noop, Description: "x"}); err == nil {
		t.Fatal("name without slash accepted")
	}
	if err := reg.RegisterCommand("/empty", commands.Command{Description: "x"}); err == nil {
		t.Fatal("nil handler accepted")
	}

	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "start" || visible[1].Text != "bid" {
		t.Fatalf("visible commands = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 3 || all[2].Text != "fhe_reset" {
		t.Fatalf("all commands = %+v", all)
	}

	cases := map[string]string{
		"/bid 100":         "/bid",
		"/BID@sealbid_bot": "/bid",
		"offer 5":          "/bid",
		"start":            "/start",
	}
	for text, want := range cases {
		got, _, ok := reg.LookupCommand(text)
		if !ok || got != want {
			t.Errorf("LookupCommand(%q) = %q, %v; want %q", text, got, ok, want)
		}
	}
	for _, text := range []string{"", "100", "/unknown"} {
		if _, _, ok := reg.LookupCommand(text); ok {
			t.Errorf("LookupCommand(%q) matched", text)
		}
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("bid_cancel", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("bid_cancel", noop); err == nil {
		t.Fatal("duplicate callback accepted")
	}
	if _, ok := reg.GetCallback("bid_cancel"); !ok {
		t.Fatal("callback not found")
	}
	if got := reg.ListCallbacks(); len(got) != 1 || got[0] != "bid_cancel" {
		t.Fatalf("callbacks = %v", got)
	}
	if reg.CallbackNotFound() == nil {
		t.Fatal("default not-found handler missing")
	}
	reg.SetCallbackNotFound(nil)
	if reg.CallbackNotFound() == nil {
		t.Fatal("nil replaced the not-found handler")
	}
}
