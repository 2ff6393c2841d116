// Package fhe manages the lifecycle of the encryption client used to seal
// bid amounts before they are sent to the auction contract.
package fhe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/m3rciful/sealbid/core/logger"
)

// ErrNotInitialized is returned by Encrypt before Init has completed.
var ErrNotInitialized = errors.New("fhe: encryption client not initialized")

// Ciphertext is an encrypted 64-bit input ready for a contract call.
type Ciphertext struct {
	Handle [32]byte
	Proof  []byte
}

// Client encrypts a value bound to a contract and the user allowed to submit it.
type Client interface {
	Encrypt(ctx context.Context, amount uint64, contract, user common.Address) (Ciphertext, error)
}

// Factory constructs a Client. It may be slow: the relayer handshake and key
// download happen here.
type Factory func(ctx context.Context) (Client, error)

// State is the adapter lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Status is a point-in-time view of the adapter.
type Status struct {
	State      State
	ReadySince time.Time
	Inits      int
	LastError  string
}

// Initialized reports whether Encrypt can be called.
func (s Status) Initialized() bool { return s.State == StateReady }

// Initializing reports whether a construction is in flight.
func (s Status) Initializing() bool { return s.State == StateInitializing }

// initCall is shared by every caller waiting on the same construction.
type initCall struct {
	done   chan struct{}
	client Client
	err    error
}

// Adapter owns at most one Client. Concurrent Init calls share a single
// construction; a failed construction returns the adapter to uninitialized.
type Adapter struct {
	factory Factory
	timeout time.Duration

	mu         sync.Mutex
	state      State
	client     Client
	inflight   *initCall
	readySince time.Time
	inits      int
	lastErr    error
}

// NewAdapter returns an uninitialized adapter. timeout bounds each
// construction independently of the caller that triggered it.
func NewAdapter(factory Factory, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Adapter{factory: factory, timeout: timeout}
}

// Init makes the adapter ready. Callers arriving while a construction is in
// flight wait for that same construction. A cancelled ctx stops the wait,
// not the construction.
func (a *Adapter) Init(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateReady:
		a.mu.Unlock()
		return nil
	case StateInitializing:
		call := a.inflight
		a.mu.Unlock()
		return wait(ctx, call)
	}
	call := &initCall{done: make(chan struct{})}
	a.state = StateInitializing
	a.inflight = call
	a.inits++
	a.mu.Unlock()

	go a.build(context.WithoutCancel(ctx), call)
	return wait(ctx, call)
}

func wait(ctx context.Context, call *initCall) error {
	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) build(ctx context.Context, call *initCall) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	logger.FHE.Info("fhe init", slog.String("event", "fhe.init.start"))

	client, err := a.factory(ctx)
	if err == nil && client == nil {
		err = errors.New("factory returned nil client")
	}
	if err != nil {
		err = fmt.Errorf("fhe: init failed: %w", err)
	}

	a.mu.Lock()
	a.inflight = nil
	if err != nil {
		a.state = StateUninitialized
		a.lastErr = err
	} else {
		a.state = StateReady
		a.client = client
		a.readySince = time.Now()
		a.lastErr = nil
	}
	a.mu.Unlock()

	call.client, call.err = client, err
	close(call.done)

	if err != nil {
		logger.FHE.Error("fhe init failed",
			slog.String("event", "fhe.init"),
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.FHE.Info("fhe ready",
		slog.String("event", "fhe.init"),
		slog.String("status", "ok"),
		slog.Duration("duration", logger.Took(start)),
	)
}

// Encrypt seals amount for contract and user. Both addresses are validated
// and checksum-normalized first. Failures are wrapped in *EncryptError and
// never retried here.
func (a *Adapter) Encrypt(ctx context.Context, amount uint64, contractAddr, userAddr string) (Ciphertext, error) {
	a.mu.Lock()
	client, state := a.client, a.state
	a.mu.Unlock()
	if state != StateReady || client == nil {
		return Ciphertext{}, ErrNotInitialized
	}

	contract, err := normalizeAddress(contractAddr)
	if err != nil {
		return Ciphertext{}, &EncryptError{Amount: amount, Contract: contractAddr, User: userAddr, Err: err}
	}
	user, err := normalizeAddress(userAddr)
	if err != nil {
		return Ciphertext{}, &EncryptError{Amount: amount, Contract: contract.Hex(), User: userAddr, Err: err}
	}

	start := time.Now()
	ct, err := client.Encrypt(ctx, amount, contract, user)
	if err != nil {
		logger.FHE.LogAttrs(ctx, slog.LevelWarn, "fhe.encrypt",
			slog.String("status", "fail"),
			slog.String("contract", contract.Hex()),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return Ciphertext{}, &EncryptError{Amount: amount, Contract: contract.Hex(), User: user.Hex(), Err: err}
	}
	logger.FHE.LogAttrs(ctx, slog.LevelDebug, "fhe.encrypt",
		slog.String("status", "ok"),
		slog.Int("proof_bytes", len(ct.Proof)),
		slog.Duration("duration", logger.Took(start)),
	)
	return ct, nil
}

// Reset drops a ready client so the next Init builds a fresh one. It has no
// effect while a construction is in flight.
func (a *Adapter) Reset() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.state
	if a.state == StateReady {
		a.state = StateUninitialized
		a.client = nil
		a.readySince = time.Time{}
		logger.FHE.Info("fhe reset", slog.String("event", "fhe.reset"))
	}
	return prev
}

// Status returns a snapshot of the adapter state.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{State: a.state, ReadySince: a.readySince, Inits: a.inits}
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
	}
	return st
}

// Ready reports whether Encrypt can be called without Init.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateReady
}

func normalizeAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// EncryptError carries the inputs of a failed encryption.
type EncryptError struct {
	Amount   uint64
	Contract string
	User     string
	Err      error
}

func (e *EncryptError) Error() string {
	return fmt.Sprintf("fhe: encrypt %d for contract %s user %s: %v", e.Amount, e.Contract, e.User, e.Err)
}

func (e *EncryptError) Unwrap() error { return e.Err }

// Code labels the error in handler summaries.
func (e *EncryptError) Code() string { return "FHE_ENCRYPT" }
