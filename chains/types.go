package chains

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RouterQuoter prices a token path the way a Uniswap V2 router does.
// The returned slice has one amount per path element; the last one is the output.
type RouterQuoter interface {
	GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// VenueBinder resolves the capability handles of a venue. It is called once per
// venue name during initialization.
type VenueBinder interface {
	BindRouter(ctx context.Context, dex engine.Dex) (RouterQuoter, error)
	PairFor(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error)
}

// FlashTrader submits trades to the flash-swap contract.
type FlashTrader interface {
	RequestFlashTrade(ctx context.Context, amount *big.Int, tokens, routers []common.Address) (*types.Transaction, error)
	WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// BalanceReader reads wallet balances.
type BalanceReader interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// SwapSource produces Swap events observed on the given pairs. Both channels are
// closed when ctx is done.
type SwapSource interface {
	Subscribe(ctx context.Context, pairs []common.Address) (<-chan engine.SwapEvent, <-chan error)
}

// TradeNotice is the payload delivered to a Notifier.
type TradeNotice struct {
	TokenPath []string
	Token     engine.Token
	Amount    *big.Int
	TxHash    common.Hash
	Outcome   engine.TradeOutcome
}

// Notifier delivers user-visible trade messages. Implementations must be
// best-effort: callers ignore returned errors beyond logging them.
type Notifier interface {
	NotifySuccess(ctx context.Context, notice TradeNotice) error
	NotifyFailure(ctx context.Context, notice TradeNotice) error
}
