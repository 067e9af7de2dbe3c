package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const routerABIJSON = `[
	{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],
	 "name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

const factoryABIJSON = `[
	{"inputs":[{"internalType":"address","name":"tokenA","type":"address"},{"internalType":"address","name":"tokenB","type":"address"}],
	 "name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairABIJSON = `[
	{"inputs":[],"name":"getReserves","outputs":[
		{"internalType":"uint112","name":"_reserve0","type":"uint112"},
		{"internalType":"uint112","name":"_reserve1","type":"uint112"},
		{"internalType":"uint32","name":"_blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"address","name":"sender","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount0In","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"amount1In","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"amount0Out","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"amount1Out","type":"uint256"},
		{"indexed":true,"internalType":"address","name":"to","type":"address"}],"name":"Swap","type":"event"}
]`

const erc20ABIJSON = `[
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],
	 "name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const flashSwapABIJSON = `[
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"address[]","name":"tokens","type":"address[]"},{"internalType":"address[]","name":"routers","type":"address[]"}],
	 "name":"requestFlashTrade","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"address","name":"requestor","type":"address"},
		{"indexed":false,"internalType":"address[]","name":"tokens","type":"address[]"},
		{"indexed":false,"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"name":"FlashLoanRequested","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"address","name":"profitToken","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"profitAmount","type":"uint256"}],"name":"FlashSwapCompleted","type":"event"}
]`

var (
	routerABI    = mustParseABI(routerABIJSON)
	factoryABI   = mustParseABI(factoryABIJSON)
	pairABI      = mustParseABI(pairABIJSON)
	erc20ABI     = mustParseABI(erc20ABIJSON)
	flashSwapABI = mustParseABI(flashSwapABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("ethereum: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
