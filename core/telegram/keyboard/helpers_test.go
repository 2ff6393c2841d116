package keyboard

import "testing"

func TestCancel(t *testing.T) {
	m := Cancel("bid_cancel", "")
	if len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 1 {
		t.Fatalf("unexpected keyboard shape: %+v", m.InlineKeyboard)
	}
	btn := m.InlineKeyboard[0][0]
	if btn.Text != CancelLabel || btn.Unique != "bid_cancel" || btn.Data != "cancel" {
		t.Fatalf("unexpected button: %+v", btn)
	}
	if b := Cancel("x", "Stop").InlineKeyboard[0][0]; b.Text != "Stop" {
		t.Fatalf("label ignored: %+v", b)
	}
}
