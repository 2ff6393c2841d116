// Package bid validates user supplied bid amounts.
package bid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Limits bounds an acceptable bid. Strict rejects fractional input; otherwise
// the amount is floored and a warning is attached.
type Limits struct {
	Min    uint64
	Max    uint64
	Strict bool
}

// DefaultLimits mirrors the contract-side expectations: whole units from 1 to 1e9.
var DefaultLimits = Limits{Min: 1, Max: 1_000_000_000, Strict: true}

// Result is the outcome of Validate. Value is zero and Error non-empty when
// Valid is false.
type Result struct {
	Valid   bool
	Error   string
	Value   uint64
	Warning string
}

func invalid(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Validate checks raw in a fixed order: presence, numeric, positive, minimum,
// maximum, integral.
func Validate(raw string, lim Limits) Result {
	s := strings.TrimSpace(raw)
	if s == "" {
		return invalid("Bid amount is required. Usage: /bid <amount>")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return invalid("Invalid amount: %q is not a valid number", s)
	}
	if f <= 0 {
		return invalid("Bid amount must be positive")
	}
	if f < float64(lim.Min) {
		return invalid("Bid amount must be at least %s", GroupThousands(lim.Min))
	}
	if f > float64(lim.Max) {
		return invalid("Bid amount cannot exceed %s", GroupThousands(lim.Max))
	}

	whole := math.Floor(f)
	if whole == f {
		return Result{Valid: true, Value: uint64(whole)}
	}
	if lim.Strict {
		return invalid("Bid amount must be a whole number (no decimals)")
	}
	return Result{
		Valid:   true,
		Value:   uint64(whole),
		Warning: fmt.Sprintf("Decimals are not supported, bidding %s instead of %s", GroupThousands(uint64(whole)), s),
	}
}

// GroupThousands renders n as 1,000,000.
func GroupThousands(n uint64) string {
	digits := strconv.FormatUint(n, 10)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
