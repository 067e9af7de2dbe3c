// Package config loads the bot's route document and environment.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/protocols/uniswapv2"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/route"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	QuoteSourceRouter   = "router"
	QuoteSourceReserves = "reserves"

	DefaultGasLimit = 400000
	DefaultGasPrice = "0.000000006"
)

// TokenFile is a token as written in the route document.
type TokenFile struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`
	Decimal uint8  `yaml:"decimal"`
}

// DefaultTokenFile adds the human-readable default input amount.
type DefaultTokenFile struct {
	TokenFile       `yaml:",inline"`
	DefaultAmountIn string `yaml:"defaultAmountIn"`
}

type DexFile struct {
	Name    string `yaml:"name"`
	Factory string `yaml:"factory"`
	Router  string `yaml:"router"`
	Pair    string `yaml:"pair"`
	FeeBps  uint16 `yaml:"feeBps"`
}

type HopFile struct {
	Dex      DexFile   `yaml:"dex"`
	TokenIn  TokenFile `yaml:"tokenIn"`
	TokenOut TokenFile `yaml:"tokenOut"`
}

// File mirrors the route document. JSON documents are accepted as well since
// they are valid YAML.
type File struct {
	Name           string           `yaml:"name"`
	Description    string           `yaml:"description"`
	DefaultToken   DefaultTokenFile `yaml:"defaultToken"`
	GasLimit       uint64           `yaml:"gasLimit"`
	GasPrice       string           `yaml:"gasPrice"`
	MinProfit      string           `yaml:"minProfit"`
	MergeMode      string           `yaml:"mergeMode"`
	QuoteSource    string           `yaml:"quoteSource"`
	QuoteTimeout   time.Duration    `yaml:"quoteTimeout"`
	ConfirmTimeout time.Duration    `yaml:"confirmTimeout"`
	DryRun         bool             `yaml:"dryRun"`
	Forward        []HopFile        `yaml:"forward"`
	Backward       []HopFile        `yaml:"backward"`
}

// BotConfig is the validated, typed configuration.
type BotConfig struct {
	Name           string
	Description    string
	DefaultToken   engine.DefaultToken
	GasLimit       uint64
	GasPrice       decimal.Decimal // native units
	MinProfit      decimal.Decimal // raw token units
	MergeMode      route.MergeMode
	QuoteSource    string
	QuoteTimeout   time.Duration
	ConfirmTimeout time.Duration
	DryRun         bool
	Forward        engine.Route
	Backward       engine.Route
}

// LoadConfig reads and validates the route document at path.
func LoadConfig(path string) (*BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a route document.
func Parse(data []byte) (*BotConfig, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", engine.ErrConfigurationInvalid, err)
	}
	return f.Build()
}

// Build converts the document into a BotConfig, scaling amounts by token
// decimals and validating both routes.
func (f *File) Build() (*BotConfig, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, invalid("name is required")
	}

	token, err := f.DefaultToken.TokenFile.token()
	if err != nil {
		return nil, fmt.Errorf("defaultToken: %w", err)
	}
	amountIn, err := ParseUnits(f.DefaultToken.DefaultAmountIn, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("defaultToken.defaultAmountIn: %w", err)
	}
	if amountIn.Sign() <= 0 {
		return nil, invalid("defaultToken.defaultAmountIn must be positive")
	}

	cfg := &BotConfig{
		Name:           f.Name,
		Description:    f.Description,
		DefaultToken:   engine.DefaultToken{Token: token, AmountIn: amountIn},
		GasLimit:       f.GasLimit,
		QuoteTimeout:   f.QuoteTimeout,
		ConfirmTimeout: f.ConfirmTimeout,
		DryRun:         f.DryRun,
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}

	gasPrice := f.GasPrice
	if gasPrice == "" {
		gasPrice = DefaultGasPrice
	}
	if cfg.GasPrice, err = decimal.NewFromString(gasPrice); err != nil || cfg.GasPrice.IsNegative() {
		return nil, invalid(fmt.Sprintf("gasPrice %q is not a non-negative number", f.GasPrice))
	}

	cfg.MinProfit = decimal.Zero
	if f.MinProfit != "" {
		minProfit, err := ParseUnits(f.MinProfit, token.Decimals)
		if err != nil {
			return nil, fmt.Errorf("minProfit: %w", err)
		}
		if minProfit.Sign() < 0 {
			return nil, invalid("minProfit must not be negative")
		}
		cfg.MinProfit = decimal.NewFromBigInt(minProfit, 0)
	}

	if cfg.MergeMode, err = route.ParseMergeMode(f.MergeMode); err != nil {
		return nil, err
	}

	switch f.QuoteSource {
	case "", QuoteSourceRouter:
		cfg.QuoteSource = QuoteSourceRouter
	case QuoteSourceReserves:
		cfg.QuoteSource = QuoteSourceReserves
	default:
		return nil, invalid(fmt.Sprintf("unknown quoteSource %q", f.QuoteSource))
	}

	if f.QuoteTimeout < 0 || f.ConfirmTimeout < 0 {
		return nil, invalid("timeouts must not be negative")
	}

	if cfg.Forward, err = buildRoute(engine.Forward, f.Forward, token.Address); err != nil {
		return nil, err
	}
	if cfg.Backward, err = buildRoute(engine.Backward, f.Backward, token.Address); err != nil {
		return nil, err
	}

	return cfg, nil
}

func buildRoute(d engine.Direction, hops []HopFile, start common.Address) (engine.Route, error) {
	r := engine.Route{Direction: d, Hops: make([]engine.Hop, 0, len(hops))}
	for i, h := range hops {
		hop, err := h.hop()
		if err != nil {
			return engine.Route{}, fmt.Errorf("%s[%d]: %w", d, i, err)
		}
		r.Hops = append(r.Hops, hop)
	}
	if err := route.Validate(r, start); err != nil {
		return engine.Route{}, err
	}
	return r, nil
}

func (h HopFile) hop() (engine.Hop, error) {
	in, err := h.TokenIn.token()
	if err != nil {
		return engine.Hop{}, fmt.Errorf("tokenIn: %w", err)
	}
	out, err := h.TokenOut.token()
	if err != nil {
		return engine.Hop{}, fmt.Errorf("tokenOut: %w", err)
	}

	factory, err := parseAddress("dex.factory", h.Dex.Factory, false)
	if err != nil {
		return engine.Hop{}, err
	}
	router, err := parseAddress("dex.router", h.Dex.Router, false)
	if err != nil {
		return engine.Hop{}, err
	}
	pair, err := parseAddress("dex.pair", h.Dex.Pair, true)
	if err != nil {
		return engine.Hop{}, err
	}
	fee := h.Dex.FeeBps
	if fee == 0 {
		fee = uniswapv2.DefaultFeeBps
	}
	if fee >= 10000 {
		return engine.Hop{}, invalid(fmt.Sprintf("dex.feeBps %d out of range", fee))
	}

	return engine.Hop{
		Dex: engine.Dex{
			Name:    h.Dex.Name,
			Factory: factory,
			Router:  router,
			Pair:    pair,
			FeeBps:  fee,
		},
		TokenIn:  in,
		TokenOut: out,
	}, nil
}

func (t TokenFile) token() (engine.Token, error) {
	if t.Symbol == "" {
		return engine.Token{}, invalid("symbol is required")
	}
	addr, err := parseAddress(t.Symbol+".address", t.Address, false)
	if err != nil {
		return engine.Token{}, err
	}
	if t.Decimal > 36 {
		return engine.Token{}, invalid(fmt.Sprintf("%s decimal %d out of range", t.Symbol, t.Decimal))
	}
	return engine.Token{Symbol: t.Symbol, Address: addr, Decimals: t.Decimal}, nil
}

func parseAddress(field, s string, optional bool) (common.Address, error) {
	if s == "" && optional {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid(fmt.Sprintf("%s %q is not a hex address", field, s))
	}
	return common.HexToAddress(s), nil
}

// ParseUnits scales a human-readable decimal amount to the token's smallest
// unit. Amounts with more fractional digits than decimals are rejected.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, invalid(fmt.Sprintf("amount %q is not a number", s))
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, invalid(fmt.Sprintf("amount %q has more than %d decimals", s, decimals))
	}
	return scaled.BigInt(), nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", engine.ErrConfigurationInvalid, msg)
}
