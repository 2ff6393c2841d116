package bid

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		valid     bool
		value     uint64
		errPrefix string
	}{
		{name: "empty", raw: "", errPrefix: "Bid amount is required"},
		{name: "blank", raw: "   ", errPrefix: "Bid amount is required"},
		{name: "letters", raw: "abc", errPrefix: `Invalid amount: "abc" is not a valid number`},
		{name: "nan", raw: "NaN", errPrefix: "Invalid amount"},
		{name: "inf", raw: "Inf", errPrefix: "Invalid amount"},
		{name: "negative", raw: "-5", errPrefix: "Bid amount must be positive"},
		{name: "zero", raw: "0", errPrefix: "Bid amount must be positive"},
		{name: "below min", raw: "0.5", errPrefix: "Bid amount must be at least 1"},
		{name: "above max", raw: "1000000001", errPrefix: "Bid amount cannot exceed 1,000,000,000"},
		{name: "decimal", raw: "10.5", errPrefix: "Bid amount must be a whole number (no decimals)"},
		{name: "min", raw: "1", valid: true, value: 1},
		{name: "max", raw: "1000000000", valid: true, value: 1_000_000_000},
		{name: "padded", raw: " 100 ", valid: true, value: 100},
		{name: "exponent", raw: "1e3", valid: true, value: 1000},
		{name: "trailing zero decimal", raw: "42.0", valid: true, value: 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.raw, DefaultLimits)
			if res.Valid != tc.valid {
				t.Fatalf("Valid = %v, want %v (%+v)", res.Valid, tc.valid, res)
			}
			if !tc.valid {
				if res.Value != 0 {
					t.Fatalf("invalid result must carry zero value, got %d", res.Value)
				}
				if res.Error == "" || !strings.HasPrefix(res.Error, tc.errPrefix) {
					t.Fatalf("Error = %q, want prefix %q", res.Error, tc.errPrefix)
				}
				return
			}
			if res.Error != "" {
				t.Fatalf("valid result has error %q", res.Error)
			}
			if res.Value != tc.value {
				t.Fatalf("Value = %d, want %d", res.Value, tc.value)
			}
		})
	}
}

func TestValidateLooseFloorsWithWarning(t *testing.T) {
	lim := DefaultLimits
	lim.Strict = false
	res := Validate("10.9", lim)
	if !res.Valid || res.Value != 10 {
		t.Fatalf("expected floored 10, got %+v", res)
	}
	if res.Warning == "" {
		t.Fatal("expected a warning for floored amount")
	}
}

func TestValidateCustomLimits(t *testing.T) {
	lim := Limits{Min: 50, Max: 5000, Strict: true}
	if res := Validate("49", lim); res.Valid || res.Error != "Bid amount must be at least 50" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res := Validate("5001", lim); res.Valid || res.Error != "Bid amount cannot exceed 5,000" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestGroupThousands(t *testing.T) {
	cases := map[uint64]string{
		0:             "0",
		999:           "999",
		1000:          "1,000",
		123456:        "123,456",
		1_000_000_000: "1,000,000,000",
	}
	for in, want := range cases {
		if got := GroupThousands(in); got != want {
			t.Errorf("GroupThousands(%d) = %s, want %s", in, got, want)
		}
	}
}
