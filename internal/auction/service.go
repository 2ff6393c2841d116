// Package auction runs a bid from raw chat input to a confirmed transaction.
package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/m3rciful/sealbid/core/logger"
	"github.com/m3rciful/sealbid/internal/bid"
	"github.com/m3rciful/sealbid/internal/chain"
	"github.com/m3rciful/sealbid/internal/fhe"
	"github.com/m3rciful/sealbid/internal/ledger"
)

// Notifier delivers progress and result messages to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Encryptor seals amounts. *fhe.Adapter satisfies it.
type Encryptor interface {
	Ready() bool
	Init(ctx context.Context) error
	Encrypt(ctx context.Context, amount uint64, contractAddr, userAddr string) (fhe.Ciphertext, error)
}

// Chain submits bids. *chain.Client satisfies it.
type Chain interface {
	Contract() common.Address
	Wallet() common.Address
	Ended(ctx context.Context) (bool, error)
	AuctionEndTime(ctx context.Context) (time.Time, error)
	Bid(ctx context.Context, handle [32]byte, proof []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (chain.Receipt, error)
}

// Stage names the step a bid reached.
type Stage string

const (
	StageValidate  Stage = "validate"
	StagePreflight Stage = "preflight"
	StageInit      Stage = "fhe_init"
	StageEncrypt   Stage = "encrypt"
	StageSubmit    Stage = "submit"
	StageConfirm   Stage = "confirm"
	StageDone      Stage = "done"
)

// Request is one bid attempt from a chat.
type Request struct {
	ChatID   int64
	UserID   int64
	Username string
	Raw      string
}

// Outcome reports where a bid stopped and why.
type Outcome struct {
	Stage   Stage
	Amount  uint64
	TxHash  string
	Block   uint64
	GasUsed uint64
	// Err is nil only for a confirmed bid.
	Err error
}

// OK reports whether the bid was confirmed on chain.
func (o Outcome) OK() bool { return o.Stage == StageDone && o.Err == nil }

var (
	// ErrInvalidAmount marks input rejected by the amount validator.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAuctionClosed marks a bid rejected by the pre-flight check.
	ErrAuctionClosed = errors.New("auction closed")
)

// Options tunes the service.
type Options struct {
	Limits      bid.Limits
	Preflight   bool
	ExplorerURL string
	Now         func() time.Time
}

// Service runs bids. It is safe for concurrent use; submissions from the
// shared wallet are serialized by the chain client.
type Service struct {
	notifier Notifier
	enc      Encryptor
	chain    Chain
	store    ledger.Store
	opts     Options
}

// NewService wires the collaborators. store may be nil.
func NewService(n Notifier, enc Encryptor, c Chain, store ledger.Store, opts Options) *Service {
	if opts.Limits.Max == 0 {
		opts.Limits = bid.DefaultLimits
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{notifier: n, enc: enc, chain: c, store: store, opts: opts}
}

// Limits exposes the amount limits for help texts.
func (s *Service) Limits() bid.Limits { return s.opts.Limits }

// PlaceBid validates, encrypts, submits and confirms one bid, reporting
// progress to req.ChatID along the way. Every failure ends in a chat message.
func (s *Service) PlaceBid(ctx context.Context, req Request) Outcome {
	start := time.Now()
	res := bid.Validate(req.Raw, s.opts.Limits)
	if !res.Valid {
		s.notify(ctx, req.ChatID, msgInvalid(res.Error))
		out := Outcome{Stage: StageValidate, Err: ErrInvalidAmount}
		s.logOutcome(ctx, req, out, start)
		return out
	}
	amount := res.Value

	rec := ledger.NewRecord(req.ChatID, req.UserID)
	ctx = logger.WithBidID(ctx, rec.ID.String())
	s.record(ctx, rec, true)

	s.notify(ctx, req.ChatID, msgValidating(amount))
	if res.Warning != "" {
		s.notify(ctx, req.ChatID, msgWarning(res.Warning))
	}

	out := s.run(ctx, req.ChatID, amount, rec)
	out.Amount = amount

	switch {
	case out.OK():
		rec.Status = ledger.StatusConfirmed
	case errors.Is(out.Err, ErrAuctionClosed):
		rec.Status = ledger.StatusRejected
		rec.Error = out.Err.Error()
	default:
		rec.Status = ledger.StatusFailed
		rec.Error = out.Err.Error()
	}
	rec.TxHash, rec.Block, rec.GasUsed = out.TxHash, out.Block, out.GasUsed
	s.record(ctx, rec, false)
	s.logOutcome(ctx, req, out, start)
	return out
}

func (s *Service) run(ctx context.Context, chatID int64, amount uint64, rec *ledger.Record) Outcome {
	if s.opts.Preflight {
		if msg, closed := s.preflight(ctx); closed {
			s.notify(ctx, chatID, msg)
			return Outcome{Stage: StagePreflight, Err: ErrAuctionClosed}
		}
	}

	if !s.enc.Ready() {
		s.notify(ctx, chatID, msgInitializingFHE)
		if err := s.enc.Init(ctx); err != nil {
			s.notify(ctx, chatID, msgFailed("Could not initialize FHE encryption. Please try again later.", ""))
			return Outcome{Stage: StageInit, Err: err}
		}
	}

	s.notify(ctx, chatID, msgEncrypting(amount))
	ct, err := s.enc.Encrypt(ctx, amount, s.chain.Contract().Hex(), s.chain.Wallet().Hex())
	if err != nil {
		s.notify(ctx, chatID, msgFailed("FHE encryption failed. Please try again later.", ""))
		return Outcome{Stage: StageEncrypt, Err: err}
	}

	s.notify(ctx, chatID, msgSubmitting)
	tx, err := s.chain.Bid(ctx, ct.Handle, ct.Proof)
	if err != nil {
		s.notify(ctx, chatID, msgFailed(failureReason(chain.Classify(err)), ""))
		return Outcome{Stage: StageSubmit, Err: err}
	}
	hash := tx.Hash().Hex()
	rec.Status = ledger.StatusSubmitted
	rec.TxHash = hash
	s.record(ctx, rec, false)

	s.notify(ctx, chatID, msgAwaiting(hash))
	receipt, err := s.chain.WaitMined(ctx, tx)
	out := Outcome{Stage: StageConfirm, TxHash: hash, Block: receipt.Block, GasUsed: receipt.GasUsed}
	if err != nil {
		s.notify(ctx, chatID, msgFailed(failureReason(chain.Classify(err)), hash))
		out.Err = err
		return out
	}

	out.Stage = StageDone
	s.notify(ctx, chatID, msgSuccess(amount, hash, receipt.Block, receipt.GasUsed, s.opts.ExplorerURL))
	return out
}

// preflight reports whether the auction is closed. Read failures are logged
// and let the bid through: the contract is the final judge.
func (s *Service) preflight(ctx context.Context) (string, bool) {
	ended, err := s.chain.Ended(ctx)
	if err != nil {
		s.warnPreflight(ctx, "ended", err)
	} else if ended {
		return msgAuctionEnded, true
	}

	end, err := s.chain.AuctionEndTime(ctx)
	if err != nil {
		s.warnPreflight(ctx, "auctionEndTime", err)
		return "", false
	}
	if end.Unix() > 0 && !s.opts.Now().Before(end) {
		return msgDeadlinePassed, true
	}
	return "", false
}

func (s *Service) warnPreflight(ctx context.Context, call string, err error) {
	logger.Bids.LogAttrs(ctx, slog.LevelWarn, "bid.preflight",
		slog.String("status", "fail"),
		slog.String("call", call),
		slog.String("err", err.Error()),
	)
}

func (s *Service) notify(ctx context.Context, chatID int64, text string) {
	if err := s.notifier.Notify(ctx, chatID, text); err != nil {
		logger.Bids.LogAttrs(ctx, slog.LevelWarn, "bid.notify",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) record(ctx context.Context, rec *ledger.Record, create bool) {
	if s.store == nil {
		return
	}
	var err error
	if create {
		err = s.store.Create(ctx, rec)
	} else {
		err = s.store.Update(ctx, rec)
	}
	if err != nil {
		logger.Ledger.LogAttrs(ctx, slog.LevelWarn, "ledger.write",
			slog.String("status", "fail"),
			slog.String("bid_status", string(rec.Status)),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) logOutcome(ctx context.Context, req Request, out Outcome, start time.Time) {
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("status", logger.Status(out.Err)),
		slog.String("stage", string(out.Stage)),
		slog.Int64("user_id", req.UserID),
		slog.Int64("chat_id", req.ChatID),
		slog.Duration("duration", logger.Took(start)),
	}
	if out.TxHash != "" {
		attrs = append(attrs, slog.String("tx_hash", out.TxHash))
	}
	if out.Block != 0 {
		attrs = append(attrs, slog.Uint64("block", out.Block), slog.Uint64("gas_used", out.GasUsed))
	}
	if out.Err != nil {
		kind := "validation"
		switch out.Stage {
		case StageSubmit, StageConfirm:
			kind = string(chain.Classify(out.Err).Kind)
		case StageInit, StageEncrypt:
			kind = "fhe"
		case StagePreflight:
			kind = "closed"
		}
		attrs = append(attrs, slog.String("err_kind", kind), slog.String("err", out.Err.Error()))
		if out.Stage != StageValidate && out.Stage != StagePreflight {
			level = slog.LevelWarn
		}
	}
	logger.Bids.LogAttrs(ctx, level, "bid.place", attrs...)
}
