package auction

import (
	"fmt"
	"strings"

	"github.com/m3rciful/sealbid/core/telegram/format"
	"github.com/m3rciful/sealbid/internal/chain"
)

// Chat texts use Telegram legacy Markdown.
const (
	msgAuctionEnded    = "⛔ The auction has ended. Bids are no longer accepted."
	msgDeadlinePassed  = "⛔ The bidding deadline has passed. Bids are no longer accepted."
	msgInitializingFHE = "🔐 Initializing FHE encryption (first bid may take a while)..."
	msgSubmitting      = "📤 Submitting transaction..."
)

func msgValidating(amount uint64) string {
	return fmt.Sprintf("⏳ Processing bid of *%d*...", amount)
}

func msgEncrypting(amount uint64) string {
	return fmt.Sprintf("🔒 Encrypting bid of *%d* with FHE...", amount)
}

func msgAwaiting(hash string) string {
	return fmt.Sprintf("⏳ Waiting for confirmation...\nTx: `%s`", hash)
}

// Validator texts quote user input, so they are escaped.
func msgInvalid(reason string) string {
	return "❌ " + format.MD(reason)
}

func msgWarning(warning string) string {
	return "⚠️ " + format.MD(warning)
}

func msgSuccess(amount uint64, tx string, block, gas uint64, explorer string) string {
	var b strings.Builder
	b.WriteString("✅ *Bid placed successfully!*\n\n")
	fmt.Fprintf(&b, "💰 Amount: *%d* (encrypted)\n", amount)
	fmt.Fprintf(&b, "🔗 Tx: `%s`\n", tx)
	fmt.Fprintf(&b, "📦 Block: %d\n", block)
	fmt.Fprintf(&b, "⛽ Gas used: %d\n", gas)
	if explorer != "" {
		fmt.Fprintf(&b, "\n[View on explorer](%s/tx/%s)", strings.TrimRight(explorer, "/"), tx)
	}
	return b.String()
}

// failureReason renders a classified chain or encryption failure for users.
func failureReason(c *chain.Classified) string {
	switch c.Kind {
	case chain.KindInsufficientFunds:
		return "Insufficient funds: the bot wallet does not have enough ETH for gas."
	case chain.KindNonce:
		return "Nonce conflict with another pending transaction. Please try again in a moment."
	case chain.KindNetwork:
		return "Network error while talking to the RPC node. Please try again later."
	case chain.KindTimeout:
		return "The transaction was not confirmed in time. It may still be mined; check the explorer."
	case chain.KindRevert:
		if c.Reason != "" {
			return "Contract reverted: " + c.Reason
		}
		return "Contract call failed - the auction may have ended."
	default:
		return c.Reason
	}
}

func msgFailed(reason, hash string) string {
	var b strings.Builder
	b.WriteString("❌ *Bid failed:*\n`")
	b.WriteString(strings.ReplaceAll(reason, "`", "'"))
	b.WriteString("`")
	if hash != "" {
		fmt.Fprintf(&b, "\nTx: `%s`", hash)
	}
	return b.String()
}
