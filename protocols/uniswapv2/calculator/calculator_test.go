package calculator

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	uniswapv2 "github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/protocols/uniswapv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

// newBigIntFromString is a helper function to create a big.Int from a string,
// which is necessary for numbers larger than a standard int64.
func newBigIntFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to set string for big.Int")
	}
	return n
}

func usdcWethPool(feeBps uint16) uniswapv2.Pool {
	return uniswapv2.Pool{
		Address:  common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		Token0:   usdc,
		Token1:   weth,
		Reserve0: big.NewInt(100_000_000),                     // 100 USDC
		Reserve1: newBigIntFromString("50000000000000000000"), // 50 WETH (18 decimals)
		FeeBps:   feeBps,
	}
}

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name           string
		amountIn       *big.Int
		tokenIn        common.Address
		tokenOut       common.Address
		pool           uniswapv2.Pool
		expectedAmount *big.Int
		expectError    bool
		expectedErr    error
	}{
		{
			name:           "Standard Swap (Token0 -> Token1)",
			amountIn:       big.NewInt(1_000_000), // 1 USDC (6 decimals)
			tokenIn:        usdc,
			tokenOut:       weth,
			pool:           usdcWethPool(30),
			expectedAmount: newBigIntFromString("493579017198530649"),
		},
		{
			name:           "Standard Swap (Token1 -> Token0)",
			amountIn:       newBigIntFromString("1000000000000000000"), // 1 WETH
			tokenIn:        weth,
			tokenOut:       usdc,
			pool:           usdcWethPool(30),
			expectedAmount: big.NewInt(1955016),
		},
		{
			name:           "Swap with Different Fee",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        usdc,
			tokenOut:       weth,
			pool:           usdcWethPool(100), // 1% fee
			expectedAmount: newBigIntFromString("490147539360332706"),
		},
		{
			name:     "Edge Case: Zero Liquidity",
			amountIn: big.NewInt(1_000_000),
			tokenIn:  usdc,
			tokenOut: weth,
			pool: uniswapv2.Pool{
				Token0:   usdc,
				Token1:   weth,
				Reserve0: big.NewInt(0),
				Reserve1: newBigIntFromString("50000000000000000000"),
				FeeBps:   30,
			},
			expectedAmount: big.NewInt(0),
		},
		{
			name:        "Invalid Input: Nil AmountIn",
			amountIn:    nil,
			tokenIn:     usdc,
			tokenOut:    weth,
			pool:        uniswapv2.Pool{},
			expectError: true,
			expectedErr: ErrNilAmount,
		},
		{
			name:        "Invalid Input: Negative AmountIn",
			amountIn:    big.NewInt(-100),
			tokenIn:     usdc,
			tokenOut:    weth,
			pool:        uniswapv2.Pool{},
			expectError: true,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "Invalid Input: Token Mismatch",
			amountIn:    big.NewInt(1_000_000),
			tokenIn:     dai, // This token is not in the pool
			tokenOut:    weth,
			pool:        usdcWethPool(30),
			expectError: true,
			expectedErr: ErrTokenMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.tokenIn, tc.tokenOut, tc.pool)

			if tc.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, amountOut)
				assert.Zero(t, tc.expectedAmount.Cmp(amountOut), "Expected %s, but got %s", tc.expectedAmount.String(), amountOut.String())
			}
		})
	}
}

func lookupFrom(pools ...uniswapv2.Pool) PoolLookup {
	return func(a, b common.Address) (uniswapv2.Pool, error) {
		for _, p := range pools {
			if (p.Token0 == a && p.Token1 == b) || (p.Token0 == b && p.Token1 == a) {
				return p, nil
			}
		}
		return uniswapv2.Pool{}, fmt.Errorf("no pool for %s/%s", a.Hex(), b.Hex())
	}
}

func TestGetAmountsOut(t *testing.T) {
	wethDai := uniswapv2.Pool{
		Address:  common.HexToAddress("0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11"),
		Token0:   dai,
		Token1:   weth,
		Reserve0: newBigIntFromString("100000000000000000000"),
		Reserve1: newBigIntFromString("50000000000000000000"),
		FeeBps:   30,
	}
	lookup := lookupFrom(usdcWethPool(30), wethDai)

	t.Run("chains each hop", func(t *testing.T) {
		amountIn := big.NewInt(1_000_000)
		amounts, err := GetAmountsOut(amountIn, []common.Address{usdc, weth, dai}, lookup)
		require.NoError(t, err)
		require.Len(t, amounts, 3)

		first, err := GetAmountOut(amountIn, usdc, weth, usdcWethPool(30))
		require.NoError(t, err)
		second, err := GetAmountOut(first, weth, dai, wethDai)
		require.NoError(t, err)

		assert.Equal(t, amountIn.String(), amounts[0].String())
		assert.Equal(t, first.String(), amounts[1].String())
		assert.Equal(t, second.String(), amounts[2].String())
		assert.NotSame(t, amountIn, amounts[0], "input must be copied")
	})

	t.Run("path too short", func(t *testing.T) {
		_, err := GetAmountsOut(big.NewInt(1), []common.Address{usdc}, lookup)
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("empty reserve", func(t *testing.T) {
		dry := usdcWethPool(30)
		dry.Reserve1 = big.NewInt(0)
		_, err := GetAmountsOut(big.NewInt(1), []common.Address{usdc, weth}, lookupFrom(dry))
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("missing pool", func(t *testing.T) {
		_, err := GetAmountsOut(big.NewInt(1), []common.Address{usdc, dai}, lookup)
		assert.Error(t, err)
	})
}

// --- Benchmarks ---

// result is a package-level variable to ensure the compiler does not optimize away the benchmarked function call.
var result *big.Int

func BenchmarkGetAmountOut(b *testing.B) {
	pool := uniswapv2.Pool{
		Token0:   usdc,
		Token1:   weth,
		Reserve0: newBigIntFromString("2000000000000"),          // 2,000,000 USDC
		Reserve1: newBigIntFromString("1000000000000000000000"), // 1,000 WETH
		FeeBps:   30,
	}
	amountIn := newBigIntFromString("1000000000000000000") // 1 WETH

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		amountOut, _ := GetAmountOut(amountIn, weth, usdc, pool)
		result = amountOut
	}
}
