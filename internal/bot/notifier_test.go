package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/sealbid/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	to   []string
	done chan struct{}
	want int
}

func (r *recordingSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, what.(string))
	r.to = append(r.to, to.Recipient())
	if len(r.sent) == r.want {
		close(r.done)
	}
	return &tele.Message{}, nil
}

func TestNotifierKeepsChatOrder(t *testing.T) {
	rs := &recordingSender{done: make(chan struct{}), want: 20}
	disp := sender.NewDispatcher(sender.Options{Workers: 4})
	defer disp.Close()
	n := &chatNotifier{bot: rs, disp: disp}

	for i := 0; i < 20; i++ {
		if err := n.Notify(context.Background(), 42, string(rune('a'+i))); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	select {
	case <-rs.done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages not delivered")
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i, s := range rs.sent {
		if s != string(rune('a'+i)) {
			t.Fatalf("out of order at %d: %v", i, rs.sent)
		}
		if rs.to[i] != "42" {
			t.Fatalf("recipient = %s", rs.to[i])
		}
	}
}

func TestNotifierInline(t *testing.T) {
	rs := &recordingSender{done: make(chan struct{}), want: 1}
	n := &chatNotifier{bot: rs}
	if err := n.Notify(context.Background(), 7, "hi"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(rs.sent) != 1 || rs.to[0] != "7" {
		t.Fatalf("unexpected sends: %v %v", rs.sent, rs.to)
	}
}
