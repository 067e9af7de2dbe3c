// Package bot runs the arbitrage pipeline for every admitted swap event.
package bot

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/executor"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/guard"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/notifier"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/profit"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/quote"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/registry"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/reporter"
	"github.com/prometheus/client_golang/prometheus"
)

// Quoter prices both routes of a cycle.
type Quoter interface {
	QuoteBoth(ctx context.Context, forward, backward engine.Route, amountIn *big.Int) (fwd, bwd quote.Result)
}

// Trader executes a chosen route.
type Trader interface {
	ExecuteRoute(ctx context.Context, r engine.Route, amountIn *big.Int) engine.TradeResult
}

// Reporter captures and renders wallet balances.
type Reporter interface {
	Snapshot(ctx context.Context) (reporter.Balances, error)
	RenderProfitability(d engine.Direction, q engine.QuoteResult, before reporter.Balances)
	RenderReport(result engine.TradeResult, before, after reporter.Balances)
}

// Config holds the configuration for the bot.
type Config struct {
	Registry  *registry.Registry
	Quoter    Quoter
	Evaluator profit.Evaluator
	Trader    Trader
	Reporter  Reporter
	Notifier  chains.Notifier // optional
	Token     engine.DefaultToken
	Metrics   *Metrics // optional
	Logger    chains.Logger
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	if c.Quoter == nil {
		return errors.New("config: Quoter is required")
	}
	if c.Trader == nil {
		return errors.New("config: Trader is required")
	}
	if c.Reporter == nil {
		return errors.New("config: Reporter is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Token.AmountIn == nil || c.Token.AmountIn.Sign() <= 0 {
		return errors.New("config: Token.AmountIn must be positive")
	}
	if _, ok := c.Registry.Route(engine.Forward); !ok {
		return errors.New("config: Registry has no forward route")
	}
	if _, ok := c.Registry.Route(engine.Backward); !ok {
		return errors.New("config: Registry has no backward route")
	}
	return nil
}

// Bot consumes swap events and runs at most one arbitrage cycle at a time.
type Bot struct {
	registry  *registry.Registry
	quoter    Quoter
	evaluator profit.Evaluator
	trader    Trader
	reporter  Reporter
	notifier  chains.Notifier
	token     engine.DefaultToken
	forward   engine.Route
	backward  engine.Route
	metrics   *Metrics
	logger    chains.Logger

	guard *guard.Guard
	wg    sync.WaitGroup
}

func New(cfg Config) (*Bot, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	sink := cfg.Notifier
	if sink == nil {
		sink = notifier.Noop{}
	}
	forward, _ := cfg.Registry.Route(engine.Forward)
	backward, _ := cfg.Registry.Route(engine.Backward)

	b := &Bot{
		registry:  cfg.Registry,
		quoter:    cfg.Quoter,
		evaluator: cfg.Evaluator,
		trader:    cfg.Trader,
		reporter:  cfg.Reporter,
		notifier:  sink,
		token:     cfg.Token,
		forward:   forward,
		backward:  backward,
		metrics:   metrics,
		logger:    cfg.Logger,
	}
	b.guard = guard.New(func() {
		metrics.EventsDropped.Inc()
	})
	return b, nil
}

// Dropped returns how many events were rejected by the guard.
func (b *Bot) Dropped() uint64 {
	return b.guard.Dropped()
}

// Run dispatches events until ctx is done or events is closed. An admitted
// event starts a cycle in its own goroutine; events arriving while a cycle is
// executing are dropped. Run waits for the in-flight cycle before returning.
func (b *Bot) Run(ctx context.Context, events <-chan engine.SwapEvent) error {
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot context canceled, waiting for in-flight cycle...")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				b.logger.Info("Swap event stream closed, stopping bot.")
				return nil
			}
			b.metrics.EventsReceived.Inc()

			b.wg.Add(1)
			admitted := b.guard.Go(func() {
				defer b.wg.Done()
				defer func() {
					if r := recover(); r != nil {
						b.logger.Error("Cycle panicked", "panic", r, "tx", ev.TxHash.Hex())
					}
				}()
				b.logSwap(ev)
				// a submitted trade is followed to its outcome even during shutdown
				b.cycle(context.WithoutCancel(ctx), ev)
			})
			if !admitted {
				b.wg.Done()
				b.logger.Debug("Cycle in progress, dropping swap event", "pair", ev.Pair.Hex(), "tx", ev.TxHash.Hex())
			}
		}
	}
}

func (b *Bot) logSwap(ev engine.SwapEvent) {
	venue := b.registry.VenueNameForPair(ev.Pair)
	pair, ok := b.registry.Pair(ev.Pair)
	if !ok {
		b.logger.Debug("Swap on unregistered pair", "venue", venue, "pair", ev.Pair.Hex(), "tx", ev.TxHash.Hex())
		return
	}
	token0, token1 := b.registry.Token(pair.Token0), b.registry.Token(pair.Token1)
	b.logger.Info("Swap detected",
		"venue", venue,
		"pair", ev.Pair.Hex(),
		"block", ev.BlockNumber,
		"tx", ev.TxHash.Hex(),
		"sender", ev.Sender.Hex(),
		"to", ev.To.Hex(),
		token0.Symbol+"_in", reporter.FormatUnits(ev.Amount0In, token0.Decimals),
		token1.Symbol+"_in", reporter.FormatUnits(ev.Amount1In, token1.Decimals),
		token0.Symbol+"_out", reporter.FormatUnits(ev.Amount0Out, token0.Decimals),
		token1.Symbol+"_out", reporter.FormatUnits(ev.Amount1Out, token1.Decimals),
	)
}

// cycle runs one pipeline: quote both routes, pick a direction, then trade
// and report. Every failure ends the cycle without affecting the next one.
func (b *Bot) cycle(ctx context.Context, ev engine.SwapEvent) {
	timer := prometheus.NewTimer(b.metrics.CycleDuration)
	defer timer.ObserveDuration()

	amountIn := b.token.AmountIn
	fwd, bwd := b.quoter.QuoteBoth(ctx, b.forward, b.backward, amountIn)

	fwdQuote, fwdOK := b.evaluate(fwd, amountIn)
	bwdQuote, bwdOK := b.evaluate(bwd, amountIn)
	if !fwdOK && !bwdOK {
		b.logger.Warn("Both routes failed to quote, ending cycle", "tx", ev.TxHash.Hex())
		b.metrics.Cycles.WithLabelValues(cycleQuoteFailed).Inc()
		return
	}

	b.logger.Info("Routes quoted",
		"forward_diff", fwdQuote.AmountDiff,
		"backward_diff", bwdQuote.AmountDiff,
		"forward_ok", fwdOK,
		"backward_ok", bwdOK,
	)

	direction, err := b.evaluator.ChoosePath(diffOrZero(fwdQuote, fwdOK), diffOrZero(bwdQuote, bwdOK))
	if err != nil {
		b.logger.Error("Failed to choose path", "error", err)
		b.metrics.Cycles.WithLabelValues(cycleNotViable).Inc()
		return
	}
	if direction == engine.None {
		b.logger.Info("No profitable path, skipping...")
		b.metrics.Cycles.WithLabelValues(cycleNotViable).Inc()
		return
	}

	chosen, q := b.forward, fwdQuote
	if direction == engine.Backward {
		chosen, q = b.backward, bwdQuote
	}
	b.logger.Info("Profitable path found", "direction", direction.String(), "diff", q.AmountDiff)

	before := b.snapshot(ctx, "before")
	b.reporter.RenderProfitability(direction, q, before)

	result := b.trader.ExecuteRoute(ctx, chosen, amountIn)
	dryRun := errors.Is(result.Err, executor.ErrDryRun)
	if dryRun {
		b.metrics.Cycles.WithLabelValues(cycleDryRun).Inc()
	} else {
		b.metrics.Trades.WithLabelValues(result.Outcome.String()).Inc()
		b.metrics.Cycles.WithLabelValues(cycleExecuted).Inc()
	}

	after := b.snapshot(ctx, "after")
	b.reporter.RenderReport(result, before, after)

	if dryRun {
		return
	}
	b.notify(ctx, chosen, result, before, after, q)
}

// evaluate returns the quote result of a route, or false if it failed.
func (b *Bot) evaluate(r quote.Result, amountIn *big.Int) (engine.QuoteResult, bool) {
	if r.Err != nil {
		b.logger.Warn("Route quote failed", "direction", r.Route.Direction.String(), "error", r.Err)
		b.metrics.QuoteFailures.WithLabelValues(r.Route.Direction.String()).Inc()
		return engine.QuoteResult{}, false
	}
	return profit.Evaluate(amountIn, r.AmountOut), true
}

// diffOrZero treats a route that failed to quote as having no diff.
func diffOrZero(q engine.QuoteResult, ok bool) string {
	if !ok {
		return "0"
	}
	return q.AmountDiff
}

func (b *Bot) snapshot(ctx context.Context, when string) reporter.Balances {
	balances, err := b.reporter.Snapshot(ctx)
	if err != nil {
		b.logger.Warn("Failed to snapshot balances", "when", when, "error", err)
	}
	return balances
}

func (b *Bot) notify(ctx context.Context, r engine.Route, result engine.TradeResult, before, after reporter.Balances, q engine.QuoteResult) {
	notice := chains.TradeNotice{
		TokenPath: r.TokenPath(),
		Token:     b.token.Token,
		TxHash:    result.TxHash,
		Outcome:   result.Outcome,
	}
	if before.Token != nil && after.Token != nil {
		notice.Amount = new(big.Int).Sub(after.Token, before.Token)
	} else if diff, ok := new(big.Int).SetString(q.AmountDiff, 10); ok {
		notice.Amount = diff
	}

	var err error
	if result.Outcome == engine.Succeeded {
		err = b.notifier.NotifySuccess(ctx, notice)
	} else {
		err = b.notifier.NotifyFailure(ctx, notice)
	}
	if err != nil {
		b.logger.Warn("Failed to send trade notification", "error", err)
	}
}
