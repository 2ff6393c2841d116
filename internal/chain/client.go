// Package chain wraps the auction contract behind a small typed client.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/sealbid/core/config"
	"github.com/m3rciful/sealbid/core/logger"
)

// Backend is the node API the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Receipt is the part of a mined transaction reported back to users.
type Receipt struct {
	TxHash  common.Hash
	Block   uint64
	GasUsed uint64
	Status  uint64
}

// Snapshot is the auction and wallet state shown by /status.
type Snapshot struct {
	Contract    common.Address
	Wallet      common.Address
	ChainID     *big.Int
	Ended       bool
	EndTime     time.Time
	Beneficiary common.Address
	Block       uint64
	Balance     *big.Int
}

// Client submits bids from a single wallet to a single auction contract.
type Client struct {
	backend        Backend
	contract       *bind.BoundContract
	address        common.Address
	key            *ecdsa.PrivateKey
	wallet         common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	closer         func()

	// submitMu serializes nonce assignment and broadcast for the wallet.
	submitMu sync.Mutex
}

// Dial connects to cfg.RPCURL and builds a Client.
func Dial(ctx context.Context, cfg coreconfig.ChainConfig) (*Client, error) {
	start := time.Now()
	rpcClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	c, err := New(ctx, rpcClient, cfg)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	c.closer = rpcClient.Close
	logger.Chain.Info("rpc connected",
		slog.String("event", "chain.dial"),
		slog.String("status", "ok"),
		slog.String("chain_id", c.chainID.String()),
		slog.String("contract", c.address.Hex()),
		slog.String("wallet", logger.ShortAddr(c.wallet.Hex())),
		slog.Duration("duration", logger.Took(start)),
	)
	return c, nil
}

// New builds a Client over an existing backend. The chain id is taken from
// cfg when set, otherwise from the node.
func New(ctx context.Context, backend Backend, cfg coreconfig.ChainConfig) (*Client, error) {
	parsed, err := parsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse auction abi: %w", err)
	}
	key, err := crypto.HexToECDSA(trimHexPrefix(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID <= 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
	}

	address := common.HexToAddress(cfg.ContractAddress)
	timeout := cfg.ConfirmTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		backend:        backend,
		contract:       bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:        address,
		key:            key,
		wallet:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		confirmTimeout: timeout,
	}, nil
}

func trimHexPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// Close releases the RPC connection when the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Wallet is the address bids are sent from.
func (c *Client) Wallet() common.Address { return c.wallet }

// Contract is the auction address.
func (c *Client) Contract() common.Address { return c.address }

// ChainID returns a copy of the chain id used for signing.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Ended reports whether the auction has been closed on chain.
func (c *Client) Ended(ctx context.Context) (bool, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodEnded); err != nil {
		return false, fmt.Errorf("call ended: %w", err)
	}
	ended, ok := firstOut[bool](out)
	if !ok {
		return false, fmt.Errorf("call ended: unexpected output %v", out)
	}
	return ended, nil
}

// AuctionEndTime returns the bidding deadline. The zero time means the
// contract has no deadline set.
func (c *Client) AuctionEndTime(ctx context.Context) (time.Time, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodAuctionEndTime); err != nil {
		return time.Time{}, fmt.Errorf("call auctionEndTime: %w", err)
	}
	ts, ok := firstOut[*big.Int](out)
	if !ok {
		return time.Time{}, fmt.Errorf("call auctionEndTime: unexpected output %v", out)
	}
	return deadline(ts)
}

func deadline(ts *big.Int) (time.Time, error) {
	if ts == nil || !ts.IsInt64() {
		return time.Time{}, fmt.Errorf("call auctionEndTime: timestamp %v out of range", ts)
	}
	if ts.Sign() == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64(), 0).UTC(), nil
}

// Beneficiary returns the address that receives the winning bid.
func (c *Client) Beneficiary(ctx context.Context) (common.Address, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodBeneficiary); err != nil {
		return common.Address{}, fmt.Errorf("call beneficiary: %w", err)
	}
	addr, ok := firstOut[common.Address](out)
	if !ok {
		return common.Address{}, fmt.Errorf("call beneficiary: unexpected output %v", out)
	}
	return addr, nil
}

func firstOut[T any](out []any) (T, bool) {
	var zero T
	if len(out) == 0 {
		return zero, false
	}
	v, ok := out[0].(T)
	return v, ok
}

// Bid signs and broadcasts bid(handle, proof). It returns once the node has
// accepted the transaction; use WaitMined for inclusion.
func (c *Client) Bid(ctx context.Context, handle [32]byte, proof []byte) (*types.Transaction, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	auth.Context = ctx

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	start := time.Now()
	tx, err := c.contract.Transact(auth, methodBid, handle, proof)
	if err != nil {
		logger.Chain.LogAttrs(ctx, slog.LevelWarn, "chain.bid.submit",
			slog.String("status", "fail"),
			slog.String("err_kind", string(Classify(err).Kind)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("submit bid: %w", err)
	}
	logger.Chain.LogAttrs(ctx, slog.LevelInfo, "chain.bid.submit",
		slog.String("status", "ok"),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()),
		slog.Duration("duration", logger.Took(start)),
	)
	return tx, nil
}

// WaitMined blocks until tx is included or the confirmation timeout passes.
// A mined transaction with failed status yields the receipt and a revert error.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	start := time.Now()
	r, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %s", ErrConfirmTimeout, c.confirmTimeout, tx.Hash().Hex())
		}
		return Receipt{TxHash: tx.Hash()}, err
	}

	rec := Receipt{TxHash: r.TxHash, GasUsed: r.GasUsed, Status: r.Status}
	if r.BlockNumber != nil {
		rec.Block = r.BlockNumber.Uint64()
	}
	logger.Chain.LogAttrs(ctx, slog.LevelInfo, "chain.bid.mined",
		slog.String("status", logger.Status(nil)),
		slog.String("tx_hash", rec.TxHash.Hex()),
		slog.Uint64("block", rec.Block),
		slog.Uint64("gas_used", rec.GasUsed),
		slog.Bool("reverted", r.Status == types.ReceiptStatusFailed),
		slog.Duration("duration", logger.Took(start)),
	)

	if r.Status == types.ReceiptStatusFailed {
		return rec, c.revertError(ctx, tx, r.BlockNumber)
	}
	return rec, nil
}

// revertError replays a failed transaction as a call at its block to
// recover the revert reason.
func (c *Client) revertError(ctx context.Context, tx *types.Transaction, block *big.Int) error {
	msg := ethereum.CallMsg{
		From:  c.wallet,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := c.backend.CallContract(ctx, msg, block)
	if err == nil {
		err = errors.New("transaction reverted")
	}
	classified := Classify(err)
	if classified.Kind != KindRevert {
		return &Classified{Kind: KindRevert, Err: err}
	}
	return classified
}

// Snapshot reads auction and wallet state concurrently. Fields whose read
// failed keep their zero value; the first error is returned alongside.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Contract: c.address, Wallet: c.wallet, ChainID: c.ChainID()}

	var g errgroup.Group
	g.Go(func() error {
		v, err := c.Ended(ctx)
		snap.Ended = v
		return err
	})
	g.Go(func() error {
		v, err := c.AuctionEndTime(ctx)
		snap.EndTime = v
		return err
	})
	g.Go(func() error {
		v, err := c.Beneficiary(ctx)
		snap.Beneficiary = v
		return err
	})
	g.Go(func() error {
		v, err := c.backend.BlockNumber(ctx)
		snap.Block = v
		return err
	})
	g.Go(func() error {
		v, err := c.backend.BalanceAt(ctx, c.wallet, nil)
		snap.Balance = v
		return err
	})
	err := g.Wait()
	return snap, err
}
