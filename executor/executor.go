package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

const DefaultConfirmTimeout = 2 * time.Minute

// ErrDryRun is attached to results produced while DryRun is enabled.
var ErrDryRun = errors.New("dry run: trade not submitted")

// Config holds the configuration for the executor.
type Config struct {
	Trader         chains.FlashTrader
	Logger         chains.Logger
	ConfirmTimeout time.Duration
	DryRun         bool
}

func (c *Config) validate() error {
	if c.Trader == nil && !c.DryRun {
		return errors.New("config: Trader is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Executor submits a chosen route to the flash-trade entry point and classifies
// the outcome. It never retries.
type Executor struct {
	trader         chains.FlashTrader
	logger         chains.Logger
	confirmTimeout time.Duration
	dryRun         bool
}

func New(cfg Config) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Executor{
		trader:         cfg.Trader,
		logger:         cfg.Logger,
		confirmTimeout: timeout,
		dryRun:         cfg.DryRun,
	}, nil
}

// Arguments builds the requestFlashTrade token and router lists: the input
// token and router of every hop, in order.
func Arguments(r engine.Route) (tokens, routers []common.Address, err error) {
	if len(r.Hops) == 0 {
		return nil, nil, fmt.Errorf("%w: %s route has no hops", engine.ErrConfigurationInvalid, r.Direction)
	}
	tokens = make([]common.Address, len(r.Hops))
	routers = make([]common.Address, len(r.Hops))
	for i, hop := range r.Hops {
		tokens[i] = hop.TokenIn.Address
		routers[i] = hop.Dex.Router
	}
	return tokens, routers, nil
}

// ExecuteRoute is Execute with arguments derived from r.
func (e *Executor) ExecuteRoute(ctx context.Context, r engine.Route, amountIn *big.Int) engine.TradeResult {
	tokens, routers, err := Arguments(r)
	if err != nil {
		return engine.TradeResult{Outcome: engine.SubmissionFailed, Err: err}
	}
	e.logger.Info("Preparing to execute trade", "direction", r.Direction.String(), "amount_in", amountIn.String())
	return e.Execute(ctx, amountIn, tokens, routers)
}

// Execute submits requestFlashTrade and waits for its confirmation. Every
// failure is folded into the returned TradeResult; Receipt is nil unless the
// trade succeeded.
func (e *Executor) Execute(ctx context.Context, amountIn *big.Int, tokens, routers []common.Address) engine.TradeResult {
	if amountIn == nil || amountIn.Sign() <= 0 || len(tokens) == 0 || len(tokens) != len(routers) {
		err := fmt.Errorf("%w: invalid arguments (tokens=%d routers=%d)", engine.ErrTradeSubmissionFailed, len(tokens), len(routers))
		e.logger.Error("Refusing to submit flash trade", "error", err)
		return engine.TradeResult{Outcome: engine.SubmissionFailed, Err: err}
	}

	if e.dryRun {
		e.logger.Info("Dry run, skipping flash trade submission",
			"amount", amountIn.String(),
			"tokens", addressStrings(tokens),
			"routers", addressStrings(routers),
		)
		return engine.TradeResult{Outcome: engine.SubmissionFailed, Err: ErrDryRun}
	}

	e.logger.Info("Requesting flash loan and trade...", "amount", amountIn.String(), "hops", len(tokens))
	tx, err := e.trader.RequestFlashTrade(ctx, amountIn, tokens, routers)
	if err != nil {
		err = fmt.Errorf("%w: %w", engine.ErrTradeSubmissionFailed, err)
		e.logger.Error("Flash trade submission failed", "error", err)
		return engine.TradeResult{Outcome: engine.SubmissionFailed, Err: err}
	}
	if tx == nil {
		err = fmt.Errorf("%w: no transaction returned", engine.ErrTradeSubmissionFailed)
		e.logger.Error("Flash trade submission failed", "error", err)
		return engine.TradeResult{Outcome: engine.SubmissionFailed, Err: err}
	}

	e.logger.Info("Flash trade submitted, waiting for confirmation", "tx", tx.Hash().Hex())
	return e.confirm(ctx, tx)
}

func (e *Executor) confirm(ctx context.Context, tx *types.Transaction) engine.TradeResult {
	ctx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	hash := tx.Hash()
	receipt, err := e.trader.WaitConfirmed(ctx, tx)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %s after %s", engine.ErrTradeTimedOut, hash.Hex(), e.confirmTimeout)
		e.logger.Error("Flash trade confirmation timed out", "tx", hash.Hex(), "error", err)
		return engine.TradeResult{Outcome: engine.TimedOut, TxHash: hash, Err: err}
	case err != nil:
		err = fmt.Errorf("%w: %s: %w", engine.ErrTradeReverted, hash.Hex(), err)
		e.logger.Error("Flash trade confirmation failed", "tx", hash.Hex(), "error", err)
		return engine.TradeResult{Outcome: engine.Reverted, TxHash: hash, Err: err}
	case receipt == nil || receipt.Status != types.ReceiptStatusSuccessful:
		err = fmt.Errorf("%w: %s", engine.ErrTradeReverted, hash.Hex())
		e.logger.Error("Flash trade reverted", "tx", hash.Hex())
		return engine.TradeResult{Outcome: engine.Reverted, TxHash: hash, Err: err}
	}

	e.logger.Info("Flash trade confirmed",
		"tx", hash.Hex(),
		"block", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
	)
	return engine.TradeResult{
		Outcome: engine.Succeeded,
		TxHash:  hash,
		Receipt: &engine.Receipt{
			TxHash:      hash,
			BlockNumber: receipt.BlockNumber,
			GasUsed:     receipt.GasUsed,
			Status:      receipt.Status,
		},
	}
}

func addressStrings(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}
