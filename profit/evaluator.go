package profit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount string is not a decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// Evaluate computes the route outcome for a raw input and output amount.
// AmountDiff = amountOut - amountIn, computed exactly.
func Evaluate(amountIn, amountOut *big.Int) engine.QuoteResult {
	in := decimal.NewFromBigInt(amountIn, 0)
	out := decimal.NewFromBigInt(amountOut, 0)
	return engine.QuoteResult{
		AmountIn:   in.String(),
		AmountOut:  out.String(),
		AmountDiff: out.Sub(in).String(),
	}
}

func parse(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q: %v", ErrInvalidAmount, name, s, err)
	}
	return d, nil
}

// ChoosePath picks the strictly better route with a positive diff. Ties and
// non-positive diffs yield engine.None.
func ChoosePath(forwardDiff, backwardDiff string) (engine.Direction, error) {
	return Evaluator{}.ChoosePath(forwardDiff, backwardDiff)
}

// Evaluator applies an optional minimum profit on top of the sign rule.
// The zero value is the plain sign rule.
type Evaluator struct {
	// MinProfit is the raw-unit amount a diff must strictly exceed. Zero when unset.
	MinProfit decimal.Decimal
}

func (e Evaluator) ChoosePath(forwardDiff, backwardDiff string) (engine.Direction, error) {
	f, err := parse("forward diff", forwardDiff)
	if err != nil {
		return engine.None, err
	}
	b, err := parse("backward diff", backwardDiff)
	if err != nil {
		return engine.None, err
	}

	floor := decimal.Zero
	if e.MinProfit.IsPositive() {
		floor = e.MinProfit
	}

	switch {
	case f.GreaterThan(b) && f.GreaterThan(floor):
		return engine.Forward, nil
	case b.GreaterThan(f) && b.GreaterThan(floor):
		return engine.Backward, nil
	default:
		return engine.None, nil
	}
}
