package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// LogFeed is a connection able to stream contract logs.
type LogFeed interface {
	SubscribeFilterLogs(ctx context.Context, q geth.FilterQuery, ch chan<- types.Log) (geth.Subscription, error)
	Close()
}

// DialFunc opens a new LogFeed. It is called again after every dropped
// subscription.
type DialFunc func(ctx context.Context, url string) (LogFeed, error)

// DialLogFeed dials a websocket node with ethclient.
func DialLogFeed(ctx context.Context, url string) (LogFeed, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// logStream keeps a log subscription alive across disconnects, redialing with
// exponential backoff.
type logStream struct {
	url    string
	dial   DialFunc
	query  geth.FilterQuery
	logger chains.Logger

	// handle must not block past ctx.
	handle func(ctx context.Context, l types.Log)
	// report receives recoverable subscription errors.
	report func(err error)
}

func (s *logStream) run(ctx context.Context) {
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			s.logger.Info("Log stream context canceled, shutting down.")
			return
		}

		s.logger.Info("Attempting to connect to log feed", "url", s.url)
		feed, err := s.dial(ctx, s.url)
		if err != nil {
			s.logger.Error("Failed to connect to log feed, will retry...", "error", err, "delay", reconnectDelay)
			s.report(fmt.Errorf("dial log feed: %w", err))
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		s.logger.Info("Successfully connected to log feed.")
		reconnectDelay = initialReconnectDelay

		err = s.subscribeAndProcess(ctx, feed)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("Context canceled, shutting down.")
				return
			}
			s.logger.Error("Log subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			s.report(err)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

func (s *logStream) subscribeAndProcess(ctx context.Context, feed LogFeed) error {
	defer feed.Close()

	logCh := make(chan types.Log)
	sub, err := feed.SubscribeFilterLogs(ctx, s.query, logCh)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("Successfully subscribed. Waiting for logs...", "addresses", len(s.query.Addresses))
	for {
		select {
		case l := <-logCh:
			if l.Removed {
				s.logger.Debug("Ignoring log removed by reorg", "tx", l.TxHash.Hex())
				continue
			}
			s.handle(ctx, l)
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed by server")
			}
			return err
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
