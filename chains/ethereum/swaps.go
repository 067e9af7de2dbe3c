package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/engine"
)

// SwapTopic is the topic0 of the Uniswap V2 pair Swap event.
var SwapTopic = pairABI.Events["Swap"].ID

var ErrNotSwapLog = errors.New("log is not a Swap event")

// SwapSubscriberConfig holds the configuration for the SwapSubscriber.
type SwapSubscriberConfig struct {
	URL        string
	Logger     chains.Logger
	BufferSize uint
	// Dial defaults to DialLogFeed.
	Dial DialFunc
}

func (c *SwapSubscriberConfig) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// SwapSubscriber implements chains.SwapSource over eth_subscribe("logs").
type SwapSubscriber struct {
	url    string
	dial   DialFunc
	buffer uint
	logger chains.Logger
}

func NewSwapSubscriber(cfg SwapSubscriberConfig) (*SwapSubscriber, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dial := cfg.Dial
	if dial == nil {
		dial = DialLogFeed
	}
	return &SwapSubscriber{
		url:    cfg.URL,
		dial:   dial,
		buffer: cfg.BufferSize,
		logger: cfg.Logger,
	}, nil
}

// Subscribe streams decoded Swap events emitted by pairs. Recoverable errors
// are offered on the error channel without blocking. Both channels close once
// ctx is done.
func (s *SwapSubscriber) Subscribe(ctx context.Context, pairs []common.Address) (<-chan engine.SwapEvent, <-chan error) {
	events := make(chan engine.SwapEvent, s.buffer)
	errCh := make(chan error, 1)

	watched := mapset.NewThreadUnsafeSet(pairs...)
	stream := &logStream{
		url:    s.url,
		dial:   s.dial,
		logger: s.logger,
		query: geth.FilterQuery{
			Addresses: watched.ToSlice(),
			Topics:    [][]common.Hash{{SwapTopic}},
		},
		handle: func(ctx context.Context, l types.Log) {
			if !watched.Contains(l.Address) {
				return
			}
			ev, err := DecodeSwap(l)
			if err != nil {
				s.logger.Warn("Failed to decode swap log", "pair", l.Address.Hex(), "tx", l.TxHash.Hex(), "error", err)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		},
		report: func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	}

	go func() {
		defer close(events)
		defer close(errCh)
		stream.run(ctx)
	}()
	return events, errCh
}

// DecodeSwap converts a raw pair log into a SwapEvent.
func DecodeSwap(l types.Log) (engine.SwapEvent, error) {
	if len(l.Topics) != 3 || l.Topics[0] != SwapTopic {
		return engine.SwapEvent{}, ErrNotSwapLog
	}
	values, err := pairABI.Unpack("Swap", l.Data)
	if err != nil {
		return engine.SwapEvent{}, fmt.Errorf("failed to unpack swap data: %w", err)
	}
	if len(values) != 4 {
		return engine.SwapEvent{}, fmt.Errorf("swap data has %d fields, want 4", len(values))
	}
	amounts := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok || n == nil {
			return engine.SwapEvent{}, fmt.Errorf("swap field %d is %T", i, v)
		}
		amounts[i] = n
	}
	return engine.SwapEvent{
		Pair:        l.Address,
		Sender:      common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Amount0In:   amounts[0],
		Amount1In:   amounts[1],
		Amount0Out:  amounts[2],
		Amount1Out:  amounts[3],
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, nil
}
