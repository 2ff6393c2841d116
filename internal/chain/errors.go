package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrConfirmTimeout is returned when a submitted transaction was not mined in time.
var ErrConfirmTimeout = errors.New("chain: confirmation timed out")

// Kind groups chain failures by what the user can do about them.
type Kind string

const (
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNonce             Kind = "nonce_conflict"
	KindNetwork           Kind = "network"
	KindRevert            Kind = "revert"
	KindTimeout           Kind = "timeout"
	KindUnknown           Kind = "unknown"
)

const maxReasonRunes = 200

// Classified is a chain error with its category. Reason holds the decoded
// revert string for KindRevert and a truncated message for KindUnknown.
type Classified struct {
	Kind   Kind
	Reason string
	Err    error
}

func (c *Classified) Error() string {
	if c.Reason == "" {
		return fmt.Sprintf("chain %s: %v", c.Kind, c.Err)
	}
	return fmt.Sprintf("chain %s: %s", c.Kind, c.Reason)
}

func (c *Classified) Unwrap() error { return c.Err }

var nonceMarkers = []string{
	"nonce too low",
	"nonce too high",
	"replacement transaction underpriced",
	"already known",
	"invalid nonce",
}

var networkMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"dial tcp",
	"i/o timeout",
	"unexpected eof",
	"too many requests",
	"502 bad gateway",
	"503 service unavailable",
}

// Classify maps err onto a Kind. It returns nil for a nil error.
func Classify(err error) *Classified {
	if err == nil {
		return nil
	}
	var c *Classified
	if errors.As(err, &c) {
		return c
	}

	if errors.Is(err, ErrConfirmTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &Classified{Kind: KindTimeout, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return &Classified{Kind: KindInsufficientFunds, Err: err}
	case containsAny(msg, nonceMarkers):
		return &Classified{Kind: KindNonce, Err: err}
	}

	if reason, ok := revertReason(err); ok {
		return &Classified{Kind: KindRevert, Reason: reason, Err: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || containsAny(msg, networkMarkers) {
		return &Classified{Kind: KindNetwork, Err: err}
	}

	return &Classified{Kind: KindUnknown, Reason: truncate(err.Error(), maxReasonRunes), Err: err}
}

// revertReason extracts the revert string from JSON-RPC error data or from
// an "execution reverted: ..." message. ok is false when err is not a revert.
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, isStr := de.ErrorData().(string); isStr {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason, true
				}
			}
		}
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	idx := strings.Index(lower, "execution reverted")
	if idx < 0 {
		if strings.Contains(lower, "transaction reverted") {
			return "", true
		}
		return "", false
	}
	rest := msg[idx+len("execution reverted"):]
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
	return truncate(rest, maxReasonRunes), true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
