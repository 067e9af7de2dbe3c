package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

// Backend is the subset of *ethclient.Client the bindings depend on.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client binds the bot's collaborator contracts to an EVM node.
type Client struct {
	backend Backend
	logger  chains.Logger
	closer  func()

	reserveQuoting bool
}

// Option configures the Client.
// The interface method is unexported to prevent external modification after Dial.
type Option interface {
	apply(*Client)
}

type funcOption func(*Client)

func (f funcOption) apply(c *Client) {
	f(c)
}

func newOption(f func(*Client)) Option {
	return funcOption(f)
}

// WithReserveQuoting makes BindRouter price paths from pair reserves with
// constant-product math instead of calling the router.
func WithReserveQuoting() Option {
	return newOption(func(c *Client) {
		c.reserveQuoting = true
	})
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, logger chains.Logger, opts ...Option) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node: %w", err)
	}
	ec := ethclient.NewClient(rpcClient)
	c := NewClient(ec, logger, opts...)
	c.closer = ec.Close
	c.logger.Info("Connected to node", "url", url)
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, logger chains.Logger, opts ...Option) *Client {
	c := &Client{backend: backend, logger: logger}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// BindRouter implements chains.VenueBinder.
func (c *Client) BindRouter(ctx context.Context, dex engine.Dex) (chains.RouterQuoter, error) {
	if dex.Router == (common.Address{}) {
		return nil, fmt.Errorf("%w: venue %q has no router", engine.ErrConfigurationInvalid, dex.Name)
	}
	code, err := c.backend.CodeAt(ctx, dex.Router, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check router code: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: venue %q router %s has no code", engine.ErrConfigurationInvalid, dex.Name, dex.Router.Hex())
	}

	if c.reserveQuoting {
		c.logger.Info("Venue bound with reserve quoting", "venue", dex.Name, "factory", dex.Factory.Hex(), "fee_bps", dex.FeeBps)
		return newReserveQuoter(c, dex), nil
	}
	c.logger.Info("Venue bound", "venue", dex.Name, "router", dex.Router.Hex())
	return &routerQuoter{contract: bind.NewBoundContract(dex.Router, routerABI, c.backend, c.backend, c.backend)}, nil
}

// PairFor implements chains.VenueBinder through the factory's getPair.
func (c *Client) PairFor(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {
	contract := bind.NewBoundContract(factory, factoryABI, c.backend, c.backend, c.backend)
	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPair", tokenA, tokenB); err != nil {
		return common.Address{}, fmt.Errorf("getPair call failed: %w", err)
	}
	if len(out) != 1 {
		return common.Address{}, errors.New("getPair returned no value")
	}
	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPair returned %T", out[0])
	}
	return pair, nil
}

// NativeBalance implements chains.BalanceReader.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, account, nil)
}

// TokenBalance implements chains.BalanceReader through ERC20 balanceOf.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(token, erc20ABI, c.backend, c.backend, c.backend)
	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return bigResult(out, 0, "balanceOf")
}

func bigResult(out []any, i int, method string) (*big.Int, error) {
	if len(out) <= i {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	v, ok := out[i].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%s returned %T at %d", method, out[i], i)
	}
	return v, nil
}

type routerQuoter struct {
	contract *bind.BoundContract
}

// GetAmountsOut implements chains.RouterQuoter via UniswapV2Router02.getAmountsOut.
func (r *routerQuoter) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsOut", amountIn, path); err != nil {
		return nil, fmt.Errorf("getAmountsOut call failed: %w", err)
	}
	if len(out) != 1 {
		return nil, errors.New("getAmountsOut returned no value")
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAmountsOut returned %T", out[0])
	}
	return amounts, nil
}
