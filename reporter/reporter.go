// Package reporter captures wallet balances around a trade attempt and renders
// profitability and profit tables. It is observational only.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/holiman/uint256"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/shopspring/decimal"
)

const nativeDecimals = 18

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
)

// Balances is a point-in-time snapshot of the wallet.
type Balances struct {
	Native *big.Int
	Token  *big.Int
}

// Config holds the configuration for the reporter.
type Config struct {
	Balances chains.BalanceReader
	Account  common.Address
	Token    engine.Token
	GasLimit uint64
	// GasPrice is expressed in native units (ETH), e.g. "0.000000006".
	GasPrice decimal.Decimal
	Output   io.Writer
	Logger   chains.Logger
}

func (c *Config) validate() error {
	if c.Balances == nil {
		return errors.New("config: Balances is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.GasPrice.IsNegative() {
		return errors.New("config: GasPrice must not be negative")
	}
	return nil
}

type Reporter struct {
	balances chains.BalanceReader
	account  common.Address
	token    engine.Token
	gasCost  *uint256.Int // wei
	out      io.Writer
	logger   chains.Logger
}

func New(cfg Config) (*Reporter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	gasCost, err := EstimateGasCost(cfg.GasLimit, cfg.GasPrice)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		balances: cfg.Balances,
		account:  cfg.Account,
		token:    cfg.Token,
		gasCost:  gasCost,
		out:      out,
		logger:   cfg.Logger,
	}, nil
}

// EstimateGasCost returns gasLimit × gasPrice in wei. gasPrice is given in
// native units and must resolve to a whole number of wei.
func EstimateGasCost(gasLimit uint64, gasPrice decimal.Decimal) (*uint256.Int, error) {
	wei := gasPrice.Shift(nativeDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("%w: gas price %s has more than %d decimals", engine.ErrConfigurationInvalid, gasPrice, nativeDecimals)
	}
	price, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: gas price %s overflows", engine.ErrConfigurationInvalid, gasPrice)
	}
	cost, overflow := new(uint256.Int).MulOverflow(price, uint256.NewInt(gasLimit))
	if overflow {
		return nil, fmt.Errorf("%w: gas cost overflows", engine.ErrConfigurationInvalid)
	}
	return cost, nil
}

// Snapshot reads the native and token balances of the wallet.
func (r *Reporter) Snapshot(ctx context.Context) (Balances, error) {
	native, err := r.balances.NativeBalance(ctx, r.account)
	if err != nil {
		return Balances{}, fmt.Errorf("failed to read native balance: %w", err)
	}
	token, err := r.balances.TokenBalance(ctx, r.token.Address, r.account)
	if err != nil {
		return Balances{}, fmt.Errorf("failed to read %s balance: %w", r.token.Symbol, err)
	}
	return Balances{Native: native, Token: token}, nil
}

// FormatUnits renders a raw integer amount with the given number of decimals.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "-"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func signed(d decimal.Decimal, s string) string {
	switch d.Sign() {
	case 1:
		return green(s)
	case -1:
		return red(s)
	default:
		return s
	}
}

// RenderProfitability prints the pre-trade estimate of a route: amounts,
// gas estimate and projected balances.
func (r *Reporter) RenderProfitability(d engine.Direction, q engine.QuoteResult, before Balances) {
	in, _ := new(big.Int).SetString(q.AmountIn, 10)
	out, _ := new(big.Int).SetString(q.AmountOut, 10)
	diff, _ := new(big.Int).SetString(q.AmountDiff, 10)

	gas := r.gasCost.ToBig()
	var nativeAfter, tokenAfter *big.Int
	if before.Native != nil {
		nativeAfter = new(big.Int).Sub(before.Native, gas)
	}
	if before.Token != nil && diff != nil {
		tokenAfter = new(big.Int).Add(before.Token, diff)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Estimating %s path profitability...\n", yellow(" "+d.String()+" "))
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ETH Balance Before\t%s\n", FormatUnits(before.Native, nativeDecimals))
	fmt.Fprintf(w, "ETH Balance After\t%s\n", FormatUnits(nativeAfter, nativeDecimals))
	fmt.Fprintf(w, "ETH Spent (gas)\t%s\n", FormatUnits(gas, nativeDecimals))
	fmt.Fprintln(w, "\t")
	fmt.Fprintf(w, "Token amount in\t%s\n", FormatUnits(in, r.token.Decimals))
	fmt.Fprintf(w, "Token amount out\t%s\n", FormatUnits(out, r.token.Decimals))
	fmt.Fprintf(w, "Token Gained/Lost\t%s\n", signed(q.Diff(), FormatUnits(diff, r.token.Decimals)))
	fmt.Fprintf(w, "Token Balance Before\t%s\n", FormatUnits(before.Token, r.token.Decimals))
	fmt.Fprintf(w, "Token Balance After\t%s\n", FormatUnits(tokenAfter, r.token.Decimals))
	if err := w.Flush(); err != nil {
		r.logger.Warn("Failed to render profitability table", "error", err)
	}
}

// RenderReport prints balances before and after a trade attempt and their delta.
func (r *Reporter) RenderReport(result engine.TradeResult, before, after Balances) {
	status := green(result.Outcome.String())
	if result.Outcome != engine.Succeeded {
		status = red("Trade reverted (" + result.Outcome.String() + ")")
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Profit report: %s\n", status)
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tBefore\tAfter\tDelta")
	r.row(w, "ETH", before.Native, after.Native, nativeDecimals)
	r.row(w, r.token.Symbol, before.Token, after.Token, r.token.Decimals)
	if result.TxHash != (common.Hash{}) {
		fmt.Fprintf(w, "Tx\t%s\t\t\n", result.TxHash.Hex())
	}
	if err := w.Flush(); err != nil {
		r.logger.Warn("Failed to render profit report", "error", err)
	}
}

func (r *Reporter) row(w io.Writer, label string, before, after *big.Int, decimals uint8) {
	delta := "-"
	var deltaDec decimal.Decimal
	if before != nil && after != nil {
		d := new(big.Int).Sub(after, before)
		deltaDec = decimal.NewFromBigInt(d, 0)
		delta = FormatUnits(d, decimals)
	}
	fmt.Fprintf(w, "%s Balance\t%s\t%s\t%s\n",
		label,
		FormatUnits(before, decimals),
		FormatUnits(after, decimals),
		signed(deltaDec, delta),
	)
}
