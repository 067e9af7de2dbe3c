package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
)

var (
	FlashLoanRequestedTopic = flashSwapABI.Events["FlashLoanRequested"].ID
	FlashSwapCompletedTopic = flashSwapABI.Events["FlashSwapCompleted"].ID
)

// FlashLoanRequested is emitted by the flash-swap contract when a trade starts.
type FlashLoanRequested struct {
	Requestor common.Address
	Tokens    []common.Address
	Amounts   []*big.Int
}

// FlashSwapCompleted is emitted once the loan is repaid.
type FlashSwapCompleted struct {
	ProfitToken  common.Address
	ProfitAmount *big.Int
}

// DecodeFlashEvent decodes a log of the flash-swap contract into a
// *FlashLoanRequested or *FlashSwapCompleted.
func DecodeFlashEvent(l types.Log) (any, error) {
	if len(l.Topics) == 0 {
		return nil, errors.New("log has no topics")
	}
	switch l.Topics[0] {
	case FlashLoanRequestedTopic:
		var ev FlashLoanRequested
		if err := flashSwapABI.UnpackIntoInterface(&ev, "FlashLoanRequested", l.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack FlashLoanRequested: %w", err)
		}
		return &ev, nil
	case FlashSwapCompletedTopic:
		var ev FlashSwapCompleted
		if err := flashSwapABI.UnpackIntoInterface(&ev, "FlashSwapCompleted", l.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack FlashSwapCompleted: %w", err)
		}
		return &ev, nil
	}
	return nil, fmt.Errorf("unknown flash-swap event %s", l.Topics[0].Hex())
}

// WatchFlashEvents logs the flash-swap contract's events until ctx is done.
func WatchFlashEvents(ctx context.Context, url string, dial DialFunc, contract common.Address, logger chains.Logger) {
	if dial == nil {
		dial = DialLogFeed
	}
	stream := &logStream{
		url:    url,
		dial:   dial,
		logger: logger,
		query: geth.FilterQuery{
			Addresses: []common.Address{contract},
			Topics:    [][]common.Hash{{FlashLoanRequestedTopic, FlashSwapCompletedTopic}},
		},
		handle: func(_ context.Context, l types.Log) {
			ev, err := DecodeFlashEvent(l)
			if err != nil {
				logger.Warn("Failed to decode flash-swap log", "tx", l.TxHash.Hex(), "error", err)
				return
			}
			switch e := ev.(type) {
			case *FlashLoanRequested:
				logger.Info("Flash loan requested",
					"requestor", e.Requestor.Hex(),
					"tokens", len(e.Tokens),
					"amounts", e.Amounts,
					"tx", l.TxHash.Hex(),
				)
			case *FlashSwapCompleted:
				logger.Info("Flash swap completed",
					"profit_token", e.ProfitToken.Hex(),
					"profit_amount", e.ProfitAmount,
					"tx", l.TxHash.Hex(),
				)
			}
		},
		report: func(error) {},
	}
	stream.run(ctx)
}
