package uniswapv2

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultFeeBps is the canonical Uniswap V2 swap fee of 0.3%.
const DefaultFeeBps = 30

type Pool struct {
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *big.Int       `json:"reserve0"`
	Reserve1 *big.Int       `json:"reserve1"`
	FeeBps   uint16         `json:"feeBps"` // i.e 30 for 0.3%
}
