// Package commands describes chat commands independently of their routing.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a bot command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Usage is shown by /help, e.g. "/bid <amount>".
	Usage     string
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}
