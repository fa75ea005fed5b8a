package poller

import (
	"context"
	"time"

	"camphub/event-relay/log"
	"camphub/event-relay/outbox"

	"github.com/pkg/errors"
)

type Poller interface {
	Poll(ctx context.Context, interval time.Duration)
}

type repository interface {
	GetBatch() (*outbox.Batch, error)
}

// Waiter blocks until new outbox work is likely available, a watchdog
// elapses, or ctx is cancelled, whichever comes first. It must never be the
// poller's only wake-up source (see the interval waiter fallback).
type Waiter interface {
	Wait(ctx context.Context)
}

func New(r repository, ch chan<- *outbox.Batch, w Waiter) Poller {
	return &outboxPoller{
		ch:     ch,
		repo:   r,
		waiter: w,
	}
}

type outboxPoller struct {
	ch     chan<- *outbox.Batch
	repo   repository
	waiter Waiter
}

func (p outboxPoller) Poll(ctx context.Context, interval time.Duration) {
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := p.repo.GetBatch()
		if err != nil {
			if errors.Is(err, outbox.ErrNoEvents) {
				p.waiter.Wait(ctx)
				continue
			}

			log.Logger.WithError(err).Errorf("an unexpected error occurred when polling the outbox: %s", err)
			sleepContext(ctx, interval)
			continue
		}

		// a delivered batch means there may be more behind it, so poll
		// again straight away and only block once the outbox is drained
		select {
		case p.ch <- batch:
			break
		case <-ctx.Done():
			return
		}
	}
}

// NewIntervalWaiter returns a Waiter that simply sleeps for a fixed interval,
// the pure polling wake-up mode.
func NewIntervalWaiter(interval time.Duration) Waiter {
	return intervalWaiter{interval: interval}
}

type intervalWaiter struct {
	interval time.Duration
}

func (w intervalWaiter) Wait(ctx context.Context) {
	sleepContext(ctx, w.interval)
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
