package telegram

import (
	"encoding/json"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"
)

var allowedUpdates = []string{"message", "callback_query"}

// UpdatePoller long-polls getUpdates through the bot's Raw client. Unlike
// tele.LongPoller it hands every getUpdates error to OnError and waits
// ErrorPause before the next request, so a rejected poll never spins.
type UpdatePoller struct {
	Timeout    time.Duration
	ErrorPause time.Duration
	OnError    func(error)

	lastID int
}

// BuildPoller returns the long poller used by the transport manager. Only
// message and callback updates are requested.
func BuildPoller(timeout time.Duration, onError func(error)) *UpdatePoller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UpdatePoller{
		Timeout:    timeout,
		ErrorPause: time.Second,
		OnError:    onError,
	}
}

// Poll implements tele.Poller. The offset survives Stop/Start cycles.
func (p *UpdatePoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		updates, err := p.fetch(b)
		if err != nil {
			if p.OnError != nil {
				p.OnError(err)
			}
			pause := time.NewTimer(p.ErrorPause)
			select {
			case <-stop:
				pause.Stop()
				return
			case <-pause.C:
			}
			continue
		}

		for _, upd := range updates {
			p.lastID = upd.ID
			select {
			case dest <- upd:
			case <-stop:
				return
			}
		}
	}
}

func (p *UpdatePoller) fetch(b *tele.Bot) ([]tele.Update, error) {
	allowed, _ := json.Marshal(allowedUpdates)
	params := map[string]string{
		"offset":          strconv.Itoa(p.lastID + 1),
		"timeout":         strconv.Itoa(int(p.Timeout / time.Second)),
		"allowed_updates": string(allowed),
	}
	data, err := b.Raw("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result []tele.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}
