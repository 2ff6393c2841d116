package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type rpcDataErr struct {
	msg  string
	data any
}

func (e rpcDataErr) Error() string  { return e.msg }
func (e rpcDataErr) ErrorData() any { return e.data }

// revertData encodes Error(string) the way solidity does.
func revertData(t *testing.T, reason string) string {
	t.Helper()
	strTy, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	packed, err := abi.Arguments{{Type: strTy}}.Pack(reason)
	if err != nil {
		t.Fatal(err)
	}
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return hexutil.Encode(append(selector, packed...))
}

func TestClassify(t *testing.T) {
	long := strings.Repeat("x", 250)
	cases := []struct {
		name   string
		err    error
		kind   Kind
		reason string
	}{
		{"funds", errors.New("insufficient funds for gas * price + value: balance 0"), KindInsufficientFunds, ""},
		{"wrapped funds", fmt.Errorf("submit bid: %w", errors.New("INSUFFICIENT FUNDS")), KindInsufficientFunds, ""},
		{"nonce low", errors.New("nonce too low: next nonce 5, tx nonce 4"), KindNonce, ""},
		{"underpriced", errors.New("replacement transaction underpriced"), KindNonce, ""},
		{"revert msg", errors.New("execution reverted: Auction already ended"), KindRevert, "Auction already ended"},
		{"revert bare", errors.New("execution reverted"), KindRevert, ""},
		{"timeout", fmt.Errorf("%w: 0xabc", ErrConfirmTimeout), KindTimeout, ""},
		{"deadline", context.DeadlineExceeded, KindTimeout, ""},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, KindNetwork, ""},
		{"refused text", errors.New("Post \"https://rpc\": connection refused"), KindNetwork, ""},
		{"unknown", errors.New(long), KindUnknown, strings.Repeat("x", maxReasonRunes) + "…"},
	}
	for _, tc := range cases {
		got := Classify(tc.err)
		if got.Kind != tc.kind {
			t.Errorf("%s: kind = %s, want %s", tc.name, got.Kind, tc.kind)
			continue
		}
		if got.Reason != tc.reason {
			t.Errorf("%s: reason = %q, want %q", tc.name, got.Reason, tc.reason)
		}
		if !errors.Is(got, tc.err) {
			t.Errorf("%s: classified error does not unwrap to source", tc.name)
		}
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) must be nil")
	}
}

func TestClassifyDecodesRevertData(t *testing.T) {
	err := rpcDataErr{msg: "execution reverted", data: revertData(t, "Too late")}
	got := Classify(fmt.Errorf("estimate gas: %w", err))
	if got.Kind != KindRevert || got.Reason != "Too late" {
		t.Fatalf("got %+v", got)
	}
}

func TestClassifyKeepsClassified(t *testing.T) {
	src := &Classified{Kind: KindRevert, Reason: "x", Err: errors.New("x")}
	if got := Classify(fmt.Errorf("wrap: %w", src)); got != src {
		t.Fatalf("expected the same classified error, got %+v", got)
	}
}

func TestAuctionABI(t *testing.T) {
	parsed, err := parsedABI()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, name := range []string{methodBid, methodEnded, methodBeneficiary, methodAuctionEndTime, "auctionEnd"} {
		if _, ok := parsed.Methods[name]; !ok {
			t.Errorf("method %s missing", name)
		}
	}
	if _, ok := parsed.Events["BidPlaced"]; !ok {
		t.Error("event BidPlaced missing")
	}

	var handle [32]byte
	handle[0] = 0xff
	data, err := parsed.Pack(methodBid, handle, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("pack bid: %v", err)
	}
	if got := hexutil.Encode(data[:4]); got != hexutil.Encode(parsed.Methods[methodBid].ID) {
		t.Fatalf("selector = %s", got)
	}
	if parsed.Methods[methodBid].Sig != "bid(bytes32,bytes)" {
		t.Fatalf("signature = %s", parsed.Methods[methodBid].Sig)
	}
}

func TestTrimHexPrefix(t *testing.T) {
	for in, want := range map[string]string{"0xab": "ab", "0Xab": "ab", " ab ": "ab", "": ""} {
		if got := trimHexPrefix(in); got != want {
			t.Errorf("trimHexPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeadline(t *testing.T) {
	unset, err := deadline(big.NewInt(0))
	if err != nil || !unset.IsZero() {
		t.Fatalf("deadline(0) = %v, %v; want zero time", unset, err)
	}
	end, err := deadline(big.NewInt(1767268800))
	if err != nil || !end.Equal(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("deadline = %v, %v", end, err)
	}
	if _, err := deadline(new(big.Int).Lsh(big.NewInt(1), 70)); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := deadline(nil); err == nil {
		t.Fatal("expected error for nil timestamp")
	}
}
