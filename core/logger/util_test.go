package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"fail":      errors.New("boom"),
		"timeout":   fmt.Errorf("wait receipt: %w", context.DeadlineExceeded),
		"cancelled": context.Canceled,
	}
	for want, err := range cases {
		if got := Status(err); got != want {
			t.Errorf("Status(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestRoundMS(t *testing.T) {
	if got := RoundMS(-time.Second); got != 0 {
		t.Fatalf("negative = %s", got)
	}
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("rounded = %s", got)
	}
}

func TestSummarizeStrings(t *testing.T) {
	files := []string{"0001_bids.up.sql", "0002_index.up.sql", "0003_status.up.sql"}
	if got, cut := SummarizeStrings(files, 2); got != "0001_bids.up.sql, 0002_index.up.sql" || !cut {
		t.Fatalf("got %q truncated=%v", got, cut)
	}
	if got, cut := SummarizeStrings(files, 10); cut || got == "" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got, cut := SummarizeStrings(files, 0); got != "" || !cut {
		t.Fatalf("zero limit: %q %v", got, cut)
	}
	if _, cut := SummarizeStrings(nil, 0); cut {
		t.Fatal("empty input reported truncated")
	}
}

func TestShortAddr(t *testing.T) {
	if got := ShortAddr("0x1234567890abcdef1234567890abcdef12345678"); got != "0x1234…5678" {
		t.Fatalf("got %q", got)
	}
	if got := ShortAddr("0xabc"); got != "0xabc" {
		t.Fatalf("got %q", got)
	}
}
