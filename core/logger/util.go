package logger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status maps an operation result onto the status field. Deadlines and
// cancellations get their own values so shutdowns do not read as failures.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "fail"
	}
}

// Took is the elapsed time since start in whole milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS clamps negatives to zero and rounds to milliseconds.
func RoundMS(d time.Duration) time.Duration {
	if d < time.Millisecond/2 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values with ", ". The bool is true
// when values were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	n := len(values)
	if limit < n {
		n = max(limit, 0)
	}
	return strings.Join(values[:n], ", "), n < len(values)
}

// ShortAddr abbreviates a hex address or tx hash to 0x1234…abcd. Short
// inputs are returned unchanged.
func ShortAddr(s string) string {
	const head, tail = 6, 4
	if len(s) <= head+tail+4 {
		return s
	}
	return s[:head] + "…" + s[len(s)-tail:]
}
