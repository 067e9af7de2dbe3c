package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/executor"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/guard"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/profit"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/quote"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/registry"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/reporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = engine.Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6}
	weth = engine.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18}

	uniswap = engine.Dex{
		Name:    "uniswap",
		Factory: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		Router:  common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		Pair:    common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
	}
	sushiswap = engine.Dex{
		Name:    "sushiswap",
		Factory: common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
		Router:  common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"),
		Pair:    common.HexToAddress("0x397FF1542f962076d0BFE58eA045FfA2d347ACa0"),
	}

	amountIn = big.NewInt(10_000_000_000)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopBinder struct{}

func (nopBinder) BindRouter(context.Context, engine.Dex) (chains.RouterQuoter, error) {
	return nil, nil
}

func (nopBinder) PairFor(context.Context, common.Address, common.Address, common.Address) (common.Address, error) {
	return common.Address{}, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	forward := engine.Route{Direction: engine.Forward, Hops: []engine.Hop{
		{Dex: uniswap, TokenIn: usdc, TokenOut: weth},
		{Dex: sushiswap, TokenIn: weth, TokenOut: usdc},
	}}
	backward := engine.Route{Direction: engine.Backward, Hops: []engine.Hop{
		{Dex: sushiswap, TokenIn: usdc, TokenOut: weth},
		{Dex: uniswap, TokenIn: weth, TokenOut: usdc},
	}}
	reg, err := registry.Build(context.Background(), nopBinder{}, forward, backward)
	require.NoError(t, err)
	return reg
}

// --- fakes ---

type fakeQuoter struct {
	panics  bool
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	fwdOut  *big.Int
	bwdOut  *big.Int
	fwdErr  error
	bwdErr  error
}

func (f *fakeQuoter) QuoteBoth(_ context.Context, forward, backward engine.Route, _ *big.Int) (quote.Result, quote.Result) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("quoter exploded")
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return quote.Result{Route: forward, AmountOut: f.fwdOut, Err: f.fwdErr},
		quote.Result{Route: backward, AmountOut: f.bwdOut, Err: f.bwdErr}
}

func (f *fakeQuoter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTrader struct {
	result engine.TradeResult
	routes []engine.Route
}

func (f *fakeTrader) ExecuteRoute(_ context.Context, r engine.Route, _ *big.Int) engine.TradeResult {
	f.routes = append(f.routes, r)
	return f.result
}

type fakeReporter struct {
	snapshots []reporter.Balances
	taken     int
	err       error

	profitability int
	reports       []engine.TradeResult
	before, after reporter.Balances
}

func (f *fakeReporter) Snapshot(context.Context) (reporter.Balances, error) {
	if f.err != nil {
		f.taken++
		return reporter.Balances{}, f.err
	}
	b := f.snapshots[f.taken]
	f.taken++
	return b, nil
}

func (f *fakeReporter) RenderProfitability(engine.Direction, engine.QuoteResult, reporter.Balances) {
	f.profitability++
}

func (f *fakeReporter) RenderReport(result engine.TradeResult, before, after reporter.Balances) {
	f.reports = append(f.reports, result)
	f.before, f.after = before, after
}

type fakeNotifier struct {
	successes []chains.TradeNotice
	failures  []chains.TradeNotice
}

func (f *fakeNotifier) NotifySuccess(_ context.Context, n chains.TradeNotice) error {
	f.successes = append(f.successes, n)
	return nil
}

func (f *fakeNotifier) NotifyFailure(_ context.Context, n chains.TradeNotice) error {
	f.failures = append(f.failures, n)
	return errors.New("telegram down")
}

type harness struct {
	bot      *Bot
	quoter   *fakeQuoter
	trader   *fakeTrader
	reporter *fakeReporter
	notifier *fakeNotifier
	metrics  *Metrics
}

func newHarness(t *testing.T, q *fakeQuoter, result engine.TradeResult) *harness {
	t.Helper()
	h := &harness{
		quoter: q,
		trader: &fakeTrader{result: result},
		reporter: &fakeReporter{snapshots: []reporter.Balances{
			{Native: big.NewInt(2e18), Token: big.NewInt(500_000_000)},
			{Native: big.NewInt(1_997_600_000_000_000_000), Token: big.NewInt(680_000_000)},
		}},
		notifier: &fakeNotifier{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	b, err := New(Config{
		Registry: testRegistry(t),
		Quoter:   h.quoter,
		Trader:   h.trader,
		Reporter: h.reporter,
		Notifier: h.notifier,
		Token:    engine.DefaultToken{Token: usdc, AmountIn: amountIn},
		Metrics:  h.metrics,
		Logger:   newTestLogger(),
	})
	require.NoError(t, err)
	h.bot = b
	return h
}

// run feeds events to the bot and waits for Run to return.
func (h *harness) run(t *testing.T, events ...engine.SwapEvent) {
	t.Helper()
	ch := make(chan engine.SwapEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	require.NoError(t, h.bot.Run(context.Background(), ch))
}

func swapEvent() engine.SwapEvent {
	return engine.SwapEvent{
		Pair:        uniswap.Pair,
		Amount0In:   big.NewInt(1_000_000),
		Amount1In:   big.NewInt(0),
		Amount0Out:  big.NewInt(0),
		Amount1Out:  big.NewInt(300_000_000_000_000),
		BlockNumber: 19_000_000,
		TxHash:      common.HexToHash("0xfeed"),
	}
}

// --- tests ---

func TestBot_ExecutesProfitableForward(t *testing.T) {
	hash := common.HexToHash("0xabc")
	q := &fakeQuoter{fwdOut: big.NewInt(10_180_000_000), bwdOut: big.NewInt(9_990_000_000)}
	h := newHarness(t, q, engine.TradeResult{Outcome: engine.Succeeded, TxHash: hash, Receipt: &engine.Receipt{TxHash: hash}})

	h.run(t, swapEvent())

	require.Len(t, h.trader.routes, 1)
	assert.Equal(t, engine.Forward, h.trader.routes[0].Direction)
	assert.Equal(t, 2, h.reporter.taken)
	assert.Equal(t, 1, h.reporter.profitability)
	require.Len(t, h.reporter.reports, 1)

	require.Len(t, h.notifier.successes, 1)
	n := h.notifier.successes[0]
	assert.Equal(t, []string{"USDC", "WETH", "USDC"}, n.TokenPath)
	assert.Equal(t, "180000000", n.Amount.String(), "profit is the measured token balance delta")
	assert.Equal(t, hash, n.TxHash)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Trades.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Cycles.WithLabelValues(cycleExecuted)))
}

func TestBot_SubmissionFailureCapturesBalances(t *testing.T) {
	q := &fakeQuoter{fwdOut: big.NewInt(9_000_000_000), bwdOut: big.NewInt(10_050_000_000)}
	result := engine.TradeResult{
		Outcome: engine.SubmissionFailed,
		Err:     engine.ErrTradeSubmissionFailed,
	}
	h := newHarness(t, q, result)

	h.run(t, swapEvent())

	require.Len(t, h.trader.routes, 1)
	assert.Equal(t, engine.Backward, h.trader.routes[0].Direction)

	assert.Equal(t, 2, h.reporter.taken, "balances are captured before and after")
	require.Len(t, h.reporter.reports, 1)
	assert.Equal(t, engine.SubmissionFailed, h.reporter.reports[0].Outcome)
	assert.Nil(t, h.reporter.reports[0].Receipt)
	assert.Equal(t, "500000000", h.reporter.before.Token.String())
	assert.Equal(t, "680000000", h.reporter.after.Token.String())

	assert.Empty(t, h.notifier.successes)
	require.Len(t, h.notifier.failures, 1, "notifier errors do not affect the cycle")
	assert.Equal(t, engine.SubmissionFailed, h.notifier.failures[0].Outcome)
}

func TestBot_NoProfitableRoute(t *testing.T) {
	q := &fakeQuoter{fwdOut: big.NewInt(9_990_000_000), bwdOut: big.NewInt(10_000_000_000)}
	h := newHarness(t, q, engine.TradeResult{})

	h.run(t, swapEvent())

	assert.Equal(t, 1, q.Calls())
	assert.Empty(t, h.trader.routes)
	assert.Zero(t, h.reporter.taken)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Cycles.WithLabelValues(cycleNotViable)))
}

func TestBot_OneRouteFailsToQuote(t *testing.T) {
	q := &fakeQuoter{
		fwdErr: engine.ErrQuoteUnavailable,
		bwdOut: big.NewInt(10_100_000_000),
	}
	h := newHarness(t, q, engine.TradeResult{Outcome: engine.Reverted})

	h.run(t, swapEvent())

	require.Len(t, h.trader.routes, 1, "the other route is still evaluated")
	assert.Equal(t, engine.Backward, h.trader.routes[0].Direction)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.QuoteFailures.WithLabelValues("forward")))
}

func TestBot_OneRouteFailsOtherUnprofitable(t *testing.T) {
	q := &fakeQuoter{
		fwdErr: engine.ErrQuoteUnavailable,
		bwdOut: big.NewInt(9_000_000_000),
	}
	h := newHarness(t, q, engine.TradeResult{})

	h.run(t, swapEvent())
	assert.Empty(t, h.trader.routes)
}

func TestBot_BothRoutesFailToQuote(t *testing.T) {
	q := &fakeQuoter{fwdErr: engine.ErrQuoteUnavailable, bwdErr: engine.ErrQuoteUnavailable}
	h := newHarness(t, q, engine.TradeResult{})

	h.run(t, swapEvent())

	assert.Empty(t, h.trader.routes)
	assert.Zero(t, h.reporter.taken)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Cycles.WithLabelValues(cycleQuoteFailed)))
}

func TestBot_DryRunSkipsNotification(t *testing.T) {
	q := &fakeQuoter{fwdOut: big.NewInt(10_180_000_000), bwdOut: big.NewInt(9_990_000_000)}
	h := newHarness(t, q, engine.TradeResult{Outcome: engine.SubmissionFailed, Err: executor.ErrDryRun})

	h.run(t, swapEvent())

	require.Len(t, h.reporter.reports, 1)
	assert.Empty(t, h.notifier.successes)
	assert.Empty(t, h.notifier.failures)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Cycles.WithLabelValues(cycleDryRun)))
	assert.Zero(t, testutil.ToFloat64(h.metrics.Cycles.WithLabelValues(cycleExecuted)))
	assert.Zero(t, testutil.CollectAndCount(h.metrics.Trades), "nothing was submitted")
}

func TestBot_SnapshotFailureIsObservational(t *testing.T) {
	q := &fakeQuoter{fwdOut: big.NewInt(10_180_000_000), bwdOut: big.NewInt(9_990_000_000)}
	h := newHarness(t, q, engine.TradeResult{Outcome: engine.Succeeded})
	h.reporter.err = errors.New("node unavailable")

	h.run(t, swapEvent())

	require.Len(t, h.trader.routes, 1)
	require.Len(t, h.notifier.successes, 1)
	assert.Equal(t, "180000000", h.notifier.successes[0].Amount.String(), "falls back to the quoted diff")
}

func TestBot_DropsEventsWhileExecuting(t *testing.T) {
	q := &fakeQuoter{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		fwdOut:  big.NewInt(9_000_000_000),
		bwdOut:  big.NewInt(9_000_000_000),
	}
	h := newHarness(t, q, engine.TradeResult{})

	events := make(chan engine.SwapEvent)
	done := make(chan error, 1)
	go func() {
		done <- h.bot.Run(context.Background(), events)
	}()

	events <- swapEvent()
	<-q.started

	// the cycle is blocked inside QuoteBoth; these must be dropped
	events <- swapEvent()
	events <- swapEvent()
	require.Eventually(t, func() bool { return h.bot.Dropped() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, q.Calls(), "a dropped event has no side effects")

	close(q.release)
	close(events)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.EventsDropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.EventsReceived))
	assert.Equal(t, 1, q.Calls())
}

// syncBuffer is a log sink shared by the dispatcher and cycle goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBot_LogsOnlyAdmittedSwaps(t *testing.T) {
	q := &fakeQuoter{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		fwdOut:  big.NewInt(9_000_000_000),
		bwdOut:  big.NewInt(9_000_000_000),
	}
	h := newHarness(t, q, engine.TradeResult{})
	var logs syncBuffer
	h.bot.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	events := make(chan engine.SwapEvent)
	done := make(chan error, 1)
	go func() {
		done <- h.bot.Run(context.Background(), events)
	}()

	events <- swapEvent()
	<-q.started
	events <- swapEvent()
	events <- swapEvent()
	require.Eventually(t, func() bool { return h.bot.Dropped() == 2 }, time.Second, time.Millisecond)

	close(q.release)
	close(events)
	require.NoError(t, <-done)

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "Swap detected"), "dropped events are not logged at info")
	assert.Contains(t, out, "venue=uniswap")
	assert.Contains(t, out, "USDC_in=1")
	assert.Contains(t, out, "WETH_out=0.0003")
}

func TestBot_CyclePanicReleasesGuard(t *testing.T) {
	q := &fakeQuoter{panics: true}
	h := newHarness(t, q, engine.TradeResult{})

	h.run(t, swapEvent())
	assert.Equal(t, 1, q.Calls())

	require.Eventually(t, func() bool { return h.bot.guard.State() == guard.Idle }, time.Second, time.Millisecond)

	q.panics = false
	q.fwdOut, q.bwdOut = big.NewInt(9_000_000_000), big.NewInt(9_000_000_000)
	h.run(t, swapEvent())
	assert.Equal(t, 2, q.Calls(), "the next event is admitted after a panicking cycle")
	assert.Zero(t, h.bot.Dropped())
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, &fakeQuoter{}, engine.TradeResult{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.bot.Run(ctx, make(chan engine.SwapEvent))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBot_MinProfit(t *testing.T) {
	q := &fakeQuoter{fwdOut: big.NewInt(10_000_000_100), bwdOut: big.NewInt(9_000_000_000)}
	h := newHarness(t, q, engine.TradeResult{})
	h.bot.evaluator = profit.Evaluator{MinProfit: decimal.NewFromInt(1_000)}

	h.run(t, swapEvent())
	assert.Empty(t, h.trader.routes)
}

func TestBot_WithoutNotifier(t *testing.T) {
	q := &fakeQuoter{fwdOut: big.NewInt(10_180_000_000), bwdOut: big.NewInt(9_990_000_000)}
	trader := &fakeTrader{result: engine.TradeResult{Outcome: engine.Succeeded}}
	b, err := New(Config{
		Registry: testRegistry(t),
		Quoter:   q,
		Trader:   trader,
		Reporter: &fakeReporter{err: errors.New("offline")},
		Token:    engine.DefaultToken{Token: usdc, AmountIn: amountIn},
		Logger:   newTestLogger(),
	})
	require.NoError(t, err)

	ch := make(chan engine.SwapEvent, 1)
	ch <- swapEvent()
	close(ch)
	require.NoError(t, b.Run(context.Background(), ch))
	assert.Len(t, trader.routes, 1, "a missing notifier falls back to a no-op sink")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Logger: newTestLogger()})
	assert.Error(t, err)

	_, err = New(Config{
		Registry: testRegistry(t),
		Quoter:   &fakeQuoter{},
		Trader:   &fakeTrader{},
		Reporter: &fakeReporter{},
		Logger:   newTestLogger(),
		Token:    engine.DefaultToken{Token: usdc},
	})
	assert.Error(t, err, "the default amount is required")
}
