package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/protocols/uniswapv2"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/protocols/uniswapv2/calculator"
)

type pairKey struct {
	a, b common.Address
}

func newPairKey(a, b common.Address) pairKey {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// reserveQuoter prices paths from live pair reserves. Pair addresses are
// resolved through the venue factory once and cached; reserves are read on
// every call.
type reserveQuoter struct {
	client *Client
	dex    engine.Dex

	mu    sync.RWMutex
	pairs map[pairKey]common.Address
}

func newReserveQuoter(c *Client, dex engine.Dex) *reserveQuoter {
	return &reserveQuoter{
		client: c,
		dex:    dex,
		pairs:  make(map[pairKey]common.Address),
	}
}

// GetAmountsOut implements chains.RouterQuoter.
func (q *reserveQuoter) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	return calculator.GetAmountsOut(amountIn, path, func(a, b common.Address) (uniswapv2.Pool, error) {
		return q.pool(ctx, a, b)
	})
}

func (q *reserveQuoter) pool(ctx context.Context, a, b common.Address) (uniswapv2.Pool, error) {
	addr, err := q.pairAddress(ctx, a, b)
	if err != nil {
		return uniswapv2.Pool{}, err
	}
	reserve0, reserve1, err := q.client.Reserves(ctx, addr)
	if err != nil {
		return uniswapv2.Pool{}, err
	}
	key := newPairKey(a, b)
	return uniswapv2.Pool{
		Address:  addr,
		Token0:   key.a,
		Token1:   key.b,
		Reserve0: reserve0,
		Reserve1: reserve1,
		FeeBps:   q.dex.FeeBps,
	}, nil
}

func (q *reserveQuoter) pairAddress(ctx context.Context, a, b common.Address) (common.Address, error) {
	key := newPairKey(a, b)

	q.mu.RLock()
	addr, ok := q.pairs[key]
	q.mu.RUnlock()
	if ok {
		return addr, nil
	}

	addr, err := q.client.PairFor(ctx, q.dex.Factory, a, b)
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s has no pair for %s/%s", calculator.ErrInsufficientLiquidity, q.dex.Name, a.Hex(), b.Hex())
	}

	q.mu.Lock()
	q.pairs[key] = addr
	q.mu.Unlock()
	return addr, nil
}

// Reserves reads getReserves from a Uniswap V2 pair. The reserves are ordered
// token0, token1 where token0 sorts below token1.
func (c *Client) Reserves(ctx context.Context, pair common.Address) (reserve0, reserve1 *big.Int, err error) {
	contract := bind.NewBoundContract(pair, pairABI, c.backend, c.backend, c.backend)
	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, nil, fmt.Errorf("getReserves call failed: %w", err)
	}
	if reserve0, err = bigResult(out, 0, "getReserves"); err != nil {
		return nil, nil, err
	}
	if reserve1, err = bigResult(out, 1, "getReserves"); err != nil {
		return nil, nil, err
	}
	return reserve0, reserve1, nil
}
