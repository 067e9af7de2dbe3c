package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/route"
)

const DefaultTimeout = 5 * time.Second

// RouterLookup resolves the router handle bound for a venue name.
type RouterLookup interface {
	Router(name string) (chains.RouterQuoter, bool)
}

// QuoteError reports which segment of a route could not be priced.
// It always unwraps to engine.ErrQuoteUnavailable.
type QuoteError struct {
	Direction engine.Direction
	Segment   engine.Segment
	Cause     error
}

func (e *QuoteError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s route segment %s", engine.ErrQuoteUnavailable, e.Direction, e.Segment)
	}
	return fmt.Sprintf("%s: %s route segment %s: %v", engine.ErrQuoteUnavailable, e.Direction, e.Segment, e.Cause)
}

func (e *QuoteError) Unwrap() []error {
	if e.Cause == nil {
		return []error{engine.ErrQuoteUnavailable}
	}
	return []error{engine.ErrQuoteUnavailable, e.Cause}
}

// Config holds the configuration for the quote engine.
type Config struct {
	Routers   RouterLookup
	MergeMode route.MergeMode
	Timeout   time.Duration // per segment; zero means DefaultTimeout
	Logger    chains.Logger
}

func (c *Config) validate() error {
	if c.Routers == nil {
		return errors.New("config: Routers is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Engine prices routes segment by segment.
type Engine struct {
	routers   RouterLookup
	mergeMode route.MergeMode
	timeout   time.Duration
	logger    chains.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	mode := cfg.MergeMode
	if mode == "" {
		mode = route.MergePairwise
	}
	return &Engine{
		routers:   cfg.Routers,
		mergeMode: mode,
		timeout:   timeout,
		logger:    cfg.Logger,
	}, nil
}

// Quote returns the amount obtained at the end of the route for amountIn.
// Segments are priced strictly in order; each consumes the previous output.
func (e *Engine) Quote(ctx context.Context, r engine.Route, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amountIn must be positive", engine.ErrQuoteUnavailable)
	}

	segments, err := route.Compile(r, e.mergeMode)
	if err != nil {
		return nil, err
	}

	current := new(big.Int).Set(amountIn)
	for _, seg := range segments {
		out, err := e.quoteSegment(ctx, seg, current)
		if err != nil {
			return nil, &QuoteError{Direction: r.Direction, Segment: seg, Cause: err}
		}
		e.logger.Debug("Segment quoted",
			"direction", r.Direction.String(),
			"segment", seg.String(),
			"amount_in", current.String(),
			"amount_out", out.String(),
		)
		current = out
	}

	return current, nil
}

func (e *Engine) quoteSegment(ctx context.Context, seg engine.Segment, amountIn *big.Int) (*big.Int, error) {
	router, ok := e.routers.Router(seg.Dex.Name)
	if !ok {
		return nil, fmt.Errorf("venue %q is not registered", seg.Dex.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	amounts, err := router.GetAmountsOut(ctx, amountIn, seg.Path)
	if err != nil {
		return nil, err
	}
	if len(amounts) != len(seg.Path) {
		return nil, fmt.Errorf("router returned %d amounts for a %d token path", len(amounts), len(seg.Path))
	}
	out := amounts[len(amounts)-1]
	if out == nil || out.Sign() < 0 {
		return nil, errors.New("router returned an invalid output amount")
	}
	return new(big.Int).Set(out), nil
}

// Result is the outcome of quoting one route.
type Result struct {
	Route     engine.Route
	AmountOut *big.Int
	Err       error
}

// QuoteBoth prices the forward and backward routes concurrently. Each route is
// independent; a failure in one does not affect the other.
func (e *Engine) QuoteBoth(ctx context.Context, forward, backward engine.Route, amountIn *big.Int) (fwd, bwd Result) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		out, err := e.Quote(ctx, forward, amountIn)
		fwd = Result{Route: forward, AmountOut: out, Err: err}
	}()
	go func() {
		defer wg.Done()
		out, err := e.Quote(ctx, backward, amountIn)
		bwd = Result{Route: backward, AmountOut: out, Err: err}
	}()

	wg.Wait()
	return fwd, bwd
}
