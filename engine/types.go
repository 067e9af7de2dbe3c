package engine

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token is an immutable ERC20 description loaded from configuration.
type Token struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimal"`
}

// DefaultToken is the token a route starts and settles in.
// AmountIn is already scaled to the token's smallest unit.
type DefaultToken struct {
	Token
	AmountIn *big.Int `json:"defaultAmountIn"`
}

// Dex describes one venue. Venue identity is its Name.
type Dex struct {
	Name    string         `json:"name"`
	Factory common.Address `json:"factory"`
	Router  common.Address `json:"router"`
	Pair    common.Address `json:"pair"`
	FeeBps  uint16         `json:"feeBps"` // i.e 30 for 0.3%, used by reserve quoting only
}

// Hop is a single directed swap leg on one venue.
type Hop struct {
	Dex      Dex   `json:"dex"`
	TokenIn  Token `json:"tokenIn"`
	TokenOut Token `json:"tokenOut"`
}

type Direction uint8

const (
	None Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "none"
	}
}

// Route is an ordered chain of hops fixed at initialization.
type Route struct {
	Direction Direction
	Hops      []Hop
}

// TokenPath returns the symbols visited by the route, e.g. USDC > WETH > USDC.
func (r Route) TokenPath() []string {
	if len(r.Hops) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(r.Hops)+1)
	symbols = append(symbols, r.Hops[0].TokenIn.Symbol)
	for _, hop := range r.Hops {
		symbols = append(symbols, hop.TokenOut.Symbol)
	}
	return symbols
}

// Segment is one quote request against a single venue. Hops holds the indices
// of the route hops it covers.
type Segment struct {
	Dex  Dex
	Path []common.Address
	Hops []int
}

func (s Segment) String() string {
	parts := make([]string, len(s.Path))
	for i, addr := range s.Path {
		parts[i] = addr.Hex()
	}
	return s.Dex.Name + "[" + strings.Join(parts, ",") + "]"
}

// QuoteResult holds raw integer amounts as decimal strings.
type QuoteResult struct {
	AmountIn   string `json:"amountIn"`
	AmountOut  string `json:"amountOut"`
	AmountDiff string `json:"amountDiff"`
}

// Diff returns AmountDiff as a decimal. An unparseable value yields zero.
func (q QuoteResult) Diff() decimal.Decimal {
	d, err := decimal.NewFromString(q.AmountDiff)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SwapEvent is a decoded Swap(sender, amount0In, amount1In, amount0Out, amount1Out, to) log.
type SwapEvent struct {
	Pair        common.Address
	Sender      common.Address
	To          common.Address
	Amount0In   *big.Int
	Amount1In   *big.Int
	Amount0Out  *big.Int
	Amount1Out  *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

type TradeOutcome uint8

const (
	Succeeded TradeOutcome = iota
	Reverted
	SubmissionFailed
	TimedOut
)

func (o TradeOutcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Reverted:
		return "reverted"
	case SubmissionFailed:
		return "submission_failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Receipt is the subset of a transaction receipt the bot cares about.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber *big.Int
	GasUsed     uint64
	Status      uint64
}

// TradeResult is the classified outcome of one flash trade attempt.
// Receipt is nil unless Outcome is Succeeded.
type TradeResult struct {
	Outcome TradeOutcome
	TxHash  common.Hash
	Receipt *Receipt
	Err     error
}
