package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
)

const defaultDeliveryTimeout = 15 * time.Second

type delivery struct {
	success bool
	notice  chains.TradeNotice
}

// Async wraps a Notifier so that callers never block on delivery. Notices are
// queued in a bounded buffer and dropped when it is full; delivery errors are
// logged and swallowed.
type Async struct {
	next   chains.Notifier
	logger chains.Logger
	queue  chan delivery

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsync starts the delivery goroutine. Call Close to drain and stop it.
func NewAsync(next chains.Notifier, logger chains.Logger, buffer int) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan delivery, buffer),
		done:   make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) NotifySuccess(_ context.Context, n chains.TradeNotice) error {
	a.enqueue(delivery{success: true, notice: n})
	return nil
}

func (a *Async) NotifyFailure(_ context.Context, n chains.TradeNotice) error {
	a.enqueue(delivery{success: false, notice: n})
	return nil
}

func (a *Async) enqueue(d delivery) {
	select {
	case a.queue <- d:
	default:
		a.logger.Warn("Notification buffer full, discarding notice...", "tx", d.notice.TxHash.Hex())
	}
}

func (a *Async) loop() {
	defer close(a.done)
	for d := range a.queue {
		a.deliver(d)
	}
}

func (a *Async) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Notifier panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeliveryTimeout)
	defer cancel()

	var err error
	if d.success {
		err = a.next.NotifySuccess(ctx, d.notice)
	} else {
		err = a.next.NotifyFailure(ctx, d.notice)
	}
	if err != nil {
		a.logger.Warn("Failed to deliver notification", "error", err)
	}
}

// Close stops accepting notices and waits until the queued ones are delivered.
// It must not be called concurrently with NotifySuccess or NotifyFailure.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.queue)
	})
	<-a.done
}

// Noop discards every notice.
type Noop struct{}

func (Noop) NotifySuccess(context.Context, chains.TradeNotice) error { return nil }
func (Noop) NotifyFailure(context.Context, chains.TradeNotice) error { return nil }
