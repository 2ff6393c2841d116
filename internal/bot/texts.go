package bot

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/m3rciful/sealbid/core/telegram/format"
	"github.com/m3rciful/sealbid/internal/bid"
	"github.com/m3rciful/sealbid/internal/chain"
	"github.com/m3rciful/sealbid/internal/fhe"
	"github.com/m3rciful/sealbid/internal/ledger"
)

const (
	msgAskAmount      = "💰 How much would you like to bid?\nSend a whole number, or tap Cancel."
	msgBidCancelled   = "🚫 Bid cancelled."
	msgNothingPending = "Nothing to cancel."
	msgUnknownText    = "🤔 I did not understand that. Use /help to see what I can do."
	msgRateLimited    = "⏳ Slow down a little and try again in a moment."
	msgStatusLoading  = "⏳ Checking auction status..."
	msgNoHistory      = "📭 No bids from this chat yet."
	msgAdminOnly      = "⛔ This command is for the bot administrator."
)

func networkName(id *big.Int) string {
	if id == nil {
		return "unknown network"
	}
	switch id.Uint64() {
	case 1:
		return "Ethereum Mainnet"
	case 11155111:
		return "Sepolia Testnet"
	case 17000:
		return "Holesky Testnet"
	}
	return "chain " + id.String()
}

func prefix(a common.Address) string {
	return a.Hex()[:10] + "..."
}

func welcomeText(username string, contract, wallet common.Address, chainID *big.Int) string {
	if username == "" {
		username = "there"
	}
	return fmt.Sprintf(`🎯 *Welcome %s to the sealed-bid auction bot!*

Bids are encrypted with FHE (Fully Homomorphic Encryption) before they reach the chain, so nobody can read them until the auction is settled.

*Commands:*
/bid <amount> - place a bid (e.g. /bid 100)
/status - auction status
/history - your recent bids
/help - detailed help

*Info:*
• Contract: `+"`%s`"+`
• Network: %s
• Wallet: `+"`%s`",
		format.MD(username), prefix(contract), networkName(chainID), prefix(wallet))
}

func helpText(lim bid.Limits, ttl time.Duration) string {
	var b strings.Builder
	b.WriteString("📖 *How to use this bot*\n\n")
	b.WriteString("*1. Place a bid:*\n   /bid <amount>\n   Example: /bid 100\n")
	if ttl > 0 {
		fmt.Fprintf(&b, "   Or send /bid alone and reply with the amount within %s.\n", ttl.Round(time.Second))
	}
	b.WriteString("\n*2. Check the auction:*\n   /status\n")
	b.WriteString("\n*3. Review your bids:*\n   /history\n")
	fmt.Fprintf(&b, "\n*Bid limits:*\n• Minimum: %s\n• Maximum: %s\n", bid.GroupThousands(lim.Min), bid.GroupThousands(lim.Max))
	if lim.Strict {
		b.WriteString("• Whole numbers only\n")
	} else {
		b.WriteString("• Decimals are rounded down\n")
	}
	b.WriteString("\n*Notes:*\n• Bids are encrypted with FHE\n• Nobody can see the amount you bid\n• Results are revealed only when the auction ends")
	return b.String()
}

func formatEther(wei *big.Int) string {
	if wei == nil {
		return "n/a"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return f.Text('f', 4) + " ETH"
}

func statusText(snap chain.Snapshot, readErr error, st fhe.Status, version string) string {
	var b strings.Builder
	b.WriteString("📊 *Auction status*\n\n")
	if snap.Ended {
		b.WriteString("• State: 🔴 Ended\n")
	} else {
		b.WriteString("• State: 🟢 Open\n")
	}
	if !snap.EndTime.IsZero() {
		fmt.Fprintf(&b, "• Ends: %s\n", snap.EndTime.UTC().Format("2006-01-02 15:04 MST"))
	}
	if snap.Beneficiary != (common.Address{}) {
		fmt.Fprintf(&b, "• Beneficiary: `%s`\n", snap.Beneficiary.Hex())
	}
	fmt.Fprintf(&b, "• Contract: `%s`\n", snap.Contract.Hex())
	fmt.Fprintf(&b, "• Network: %s\n", networkName(snap.ChainID))
	if snap.Block > 0 {
		fmt.Fprintf(&b, "• Latest block: %d\n", snap.Block)
	}
	fmt.Fprintf(&b, "• Wallet: `%s` (%s)\n", prefix(snap.Wallet), formatEther(snap.Balance))
	fmt.Fprintf(&b, "• FHE: %s\n", fheLabel(st))
	fmt.Fprintf(&b, "• Version: %s", format.MD(version))
	if readErr != nil {
		b.WriteString("\n\n⚠️ Some values could not be read from the node.")
	}
	return b.String()
}

func fheLabel(st fhe.Status) string {
	switch st.State {
	case fhe.StateReady:
		return "ready"
	case fhe.StateInitializing:
		return "initializing"
	}
	if st.LastError != "" {
		return "not initialized (last attempt failed)"
	}
	return "not initialized"
}

var statusIcons = map[ledger.Status]string{
	ledger.StatusPending:   "⏳",
	ledger.StatusSubmitted: "📤",
	ledger.StatusConfirmed: "✅",
	ledger.StatusFailed:    "❌",
	ledger.StatusRejected:  "⛔",
}

func historyText(recs []ledger.Record, explorer string) string {
	if len(recs) == 0 {
		return msgNoHistory
	}
	var b strings.Builder
	b.WriteString("🧾 *Recent bids*\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s %s · %s", statusIcons[r.Status], r.CreatedAt.UTC().Format("01-02 15:04"), r.Status)
		if r.TxHash == "" {
			continue
		}
		if explorer != "" {
			fmt.Fprintf(&b, " · [%s](%s/tx/%s)", shortHash(r.TxHash), strings.TrimRight(explorer, "/"), r.TxHash)
		} else {
			fmt.Fprintf(&b, " · `%s`", shortHash(r.TxHash))
		}
	}
	b.WriteString("\n\n_Amounts stay sealed and are not stored._")
	return b.String()
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
