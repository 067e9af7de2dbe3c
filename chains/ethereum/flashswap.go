package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
)

// FlashSwap is a signing binding of the on-chain flash-swap contract.
type FlashSwap struct {
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	logger   chains.Logger
}

// NewFlashSwap binds the flash-swap contract at address. Transactions are
// signed with key for the chain reported by the backend.
func NewFlashSwap(ctx context.Context, c *Client, address common.Address, key *ecdsa.PrivateKey) (*FlashSwap, error) {
	if key == nil {
		return nil, errors.New("flash swap: private key is required")
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	return &FlashSwap{
		address:  address,
		backend:  c.backend,
		contract: bind.NewBoundContract(address, flashSwapABI, c.backend, c.backend, c.backend),
		key:      key,
		chainID:  chainID,
		logger:   c.logger,
	}, nil
}

// RequestFlashTrade implements chains.FlashTrader.
func (f *FlashSwap) RequestFlashTrade(ctx context.Context, amount *big.Int, tokens, routers []common.Address) (*types.Transaction, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(f.key, f.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := f.contract.Transact(opts, "requestFlashTrade", amount, tokens, routers)
	if err != nil {
		return nil, fmt.Errorf("requestFlashTrade failed: %w", err)
	}
	f.logger.Info("Flash trade submitted", "contract", f.address.Hex(), "tx", tx.Hash().Hex(), "nonce", tx.Nonce())
	return tx, nil
}

// WaitConfirmed implements chains.FlashTrader. It blocks until the
// transaction is mined or ctx is done.
func (f *FlashSwap) WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, f.backend, tx)
}
