package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	uniswapv2 "github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/protocols/uniswapv2"
)

var (
	// basisPointDivisor is a constant representing 100% in basis points (10000).
	basisPointDivisor = big.NewInt(10000)

	// ErrInvalidAmount is returned when an input/output amount is nil or negative.
	ErrInvalidAmount = errors.New("amount must be non-nil and non-negative")
	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrTokenMismatch is returned when the specified input/output tokens do not match the pool's tokens.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrInvalidState is returned for internal calculation errors, like division by zero.
	ErrInvalidState = errors.New("invalid internal state")
	// ErrInvalidPath is returned when a path has fewer than two tokens.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInsufficientLiquidity is returned when a pool on the path has an empty reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)

// PoolLookup returns the pool trading tokenA against tokenB.
type PoolLookup func(tokenA, tokenB common.Address) (uniswapv2.Pool, error)

// Calculator holds reusable big.Int objects to avoid memory allocations during calculations.
// Instances of this struct are NOT safe for concurrent use by themselves.
// They are intended to be managed by the sync.Pool below.
type Calculator struct {
	feeMultiplier   *big.Int
	amountInWithFee *big.Int
	numerator       *big.Int
	denominator     *big.Int
}

// calculatorPool manages a pool of Calculator objects, allowing for safe concurrent use
// and drastically reducing memory allocations.
var calculatorPool = sync.Pool{
	New: func() any {
		return &Calculator{
			feeMultiplier:   new(big.Int),
			amountInWithFee: new(big.Int),
			numerator:       new(big.Int),
			denominator:     new(big.Int),
		}
	},
}

// GetAmountOut calculates the output amount for a swap, optimized to reduce allocations.
func GetAmountOut(
	amountIn *big.Int,
	tokenIn common.Address,
	tokenOut common.Address,
	pool uniswapv2.Pool,
) (*big.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountOut(amountIn, tokenIn, tokenOut, pool)
}

// GetAmountsOut mirrors UniswapV2Router02.getAmountsOut: amounts[0] is amountIn
// and amounts[i+1] is the output of swapping amounts[i] from path[i] to path[i+1].
func GetAmountsOut(amountIn *big.Int, path []common.Address, lookup PoolLookup) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 tokens, got %d", ErrInvalidPath, len(path))
	}
	if amountIn == nil {
		return nil, ErrNilAmount
	}

	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)

	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		pool, err := lookup(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut, err := GetReserves(path[i], path[i+1], pool)
		if err != nil {
			return nil, err
		}
		if reserveIn == nil || reserveOut == nil {
			return nil, fmt.Errorf("%w: pool %s has no reserves", ErrInvalidState, pool.Address.Hex())
		}
		if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
			return nil, fmt.Errorf("%w: pool %s", ErrInsufficientLiquidity, pool.Address.Hex())
		}
		out, err := calc.getAmountOut(amounts[i], path[i], path[i+1], pool)
		if err != nil {
			return nil, err
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// getAmountOut is the internal calculation method that uses the pre-allocated fields.
func (c *Calculator) getAmountOut(
	amountIn *big.Int,
	tokenIn common.Address,
	tokenOut common.Address,
	pool uniswapv2.Pool,
) (*big.Int, error) {
	if amountIn == nil {
		return nil, ErrNilAmount
	}
	if amountIn.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	reserveIn, reserveOut, err := GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}

	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int), nil
	}

	c.feeMultiplier.Sub(basisPointDivisor, big.NewInt(int64(pool.FeeBps)))
	c.amountInWithFee.Mul(amountIn, c.feeMultiplier)
	c.numerator.Mul(reserveOut, c.amountInWithFee)
	c.denominator.Mul(reserveIn, basisPointDivisor)
	c.denominator.Add(c.denominator, c.amountInWithFee)

	if c.denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", ErrInvalidState)
	}

	return new(big.Int).Div(c.numerator, c.denominator), nil
}

// GetReserves returns the reserves for the given token pair oriented in swap direction.
func GetReserves(tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (reserveIn, reserveOut *big.Int, err error) {
	if tokenIn == pool.Token0 && tokenOut == pool.Token1 {
		return pool.Reserve0, pool.Reserve1, nil
	} else if tokenIn == pool.Token1 && tokenOut == pool.Token0 {
		return pool.Reserve1, pool.Reserve0, nil
	}
	return nil, nil, fmt.Errorf("%w: pool %s does not contain the pair %s -> %s", ErrTokenMismatch, pool.Address.Hex(), tokenIn.Hex(), tokenOut.Hex())
}
