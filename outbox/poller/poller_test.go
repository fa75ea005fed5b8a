package poller

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"camphub/event-relay/outbox"
	"camphub/event-relay/outbox/test"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	repo := test.NewMockRepository()
	ch := make(chan *outbox.Batch)

	if nil == New(repo, ch, NewIntervalWaiter(time.Millisecond)) {
		t.Errorf("received nil from New()")
	}
}

func Test_Poller_Poll(t *testing.T) {
	ch := make(chan *outbox.Batch, 2)

	b1 := &outbox.Batch{Id: uuid.New(), Messages: []*outbox.Message{{Id: uuid.New()}}}
	b2 := &outbox.Batch{Id: uuid.New(), Messages: []*outbox.Message{{Id: uuid.New()}}}

	repoWithBatches := test.NewMockRepository()
	repoWithBatches.AddBatch(b1)
	repoWithBatches.AddBatch(b2)

	t.Run("it polls for events and sends them for processing", func(t *testing.T) {
		p := New(repoWithBatches, ch, NewIntervalWaiter(time.Millisecond*10))
		go p.Poll(context.Background(), time.Millisecond*10)

		readFromChannelUntilBatchReceived(b1, ch, t)
		readFromChannelUntilBatchReceived(b2, ch, t)
	})

	t.Run("it sleeps after repository error", func(t *testing.T) {
		repo := test.NewMockRepository()
		repo.ReturnErrors()

		ctx, cancel := context.WithCancel(context.Background())
		p := New(repo, ch, NewIntervalWaiter(time.Second*200))
		go p.Poll(ctx, time.Second*200)

		time.Sleep(time.Millisecond * 100)
		cancel()

		if repo.GetBatchCallCount() > 1 {
			t.Errorf("expected the outbox Poll func to sleep after GetBatch() returns an error")
		}
	})

	t.Run("it waits when no events were found", func(t *testing.T) {
		repo := test.NewMockRepository()
		repo.ReturnNoEventsError()

		ctx, cancel := context.WithCancel(context.Background())
		p := New(repo, ch, NewIntervalWaiter(time.Second*200))
		go p.Poll(ctx, time.Second*200)

		time.Sleep(time.Millisecond * 100)
		cancel()

		if repo.GetBatchCallCount() > 1 {
			t.Errorf("expected the outbox Poll func to wait after GetBatch() returns no events")
		}
	})

	t.Run("it polls again as soon as the waiter wakes it", func(t *testing.T) {
		repo := test.NewMockRepository()
		repo.ReturnNoEventsError()
		w := &countingWaiter{}

		ctx, cancel := context.WithCancel(context.Background())
		p := New(repo, ch, w)
		go p.Poll(ctx, time.Second*200)

		time.Sleep(time.Millisecond * 100)
		cancel()

		if repo.GetBatchCallCount() < 2 {
			t.Errorf("expected the outbox Poll func to poll again after each wake-up, but it polled %d time(s)", repo.GetBatchCallCount())
		}

		if w.calls() < 1 {
			t.Error("expected the waiter to be consulted when no events were found")
		}
	})

	t.Run("it drains consecutive batches without waiting in between", func(t *testing.T) {
		b3 := &outbox.Batch{Id: uuid.New(), Messages: []*outbox.Message{{Id: uuid.New()}}}
		b4 := &outbox.Batch{Id: uuid.New(), Messages: []*outbox.Message{{Id: uuid.New()}}}

		repo := test.NewMockRepository()
		repo.AddBatch(b3)
		repo.AddBatch(b4)

		drainCh := make(chan *outbox.Batch, 2)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := New(repo, drainCh, NewIntervalWaiter(time.Second*200))
		go p.Poll(ctx, time.Second*200)

		readFromChannelUntilBatchReceived(b3, drainCh, t)
		readFromChannelUntilBatchReceived(b4, drainCh, t)
	})

	t.Run("it stops polling when context is cancelled", func(t *testing.T) {
		repo := test.NewMockRepository()
		repo.ReturnNoEventsError()

		ctx, cancel := context.WithCancel(context.Background())
		p := New(repo, make(chan *outbox.Batch, 1), NewIntervalWaiter(time.Millisecond*10))

		done := make(chan struct{})
		go func() {
			p.Poll(ctx, time.Millisecond*10)
			close(done)
		}()

		time.Sleep(time.Millisecond * 20)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("expected Poll to return soon after its context was cancelled")
		}
	})
}

func TestIntervalWaiter_Wait(t *testing.T) {
	t.Run("it returns once the interval has elapsed", func(t *testing.T) {
		w := NewIntervalWaiter(time.Millisecond * 5)

		start := time.Now()
		w.Wait(context.Background())

		if elapsed := time.Since(start); elapsed < time.Millisecond*5 {
			t.Errorf("expected the waiter to sleep for the interval, but it returned after %s", elapsed)
		}
	})

	t.Run("it returns early on context cancellation", func(t *testing.T) {
		w := NewIntervalWaiter(time.Second * 200)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(time.Millisecond)
			cancel()
		}()

		start := time.Now()
		w.Wait(ctx)

		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("expected the waiter to return on cancellation, but it took %s", elapsed)
		}
	})
}

type countingWaiter struct {
	count int32
}

func (w *countingWaiter) Wait(ctx context.Context) {
	atomic.AddInt32(&w.count, 1)
	time.Sleep(time.Millisecond)
}

func (w *countingWaiter) calls() int {
	return int(atomic.LoadInt32(&w.count))
}

func readFromChannelUntilBatchReceived(b *outbox.Batch, ch chan *outbox.Batch, t *testing.T) {
	select {
	case actual := <-ch:
		if !reflect.DeepEqual(actual, b) {
			t.Errorf("received wrong batch, got ID %s, but wanted ID %s", actual.Id, b.Id)
		}
		break
	case _ = <-time.After(time.Millisecond * 50):
		t.Errorf("expected batch ID %s to be received within 50ms, but was not", b.Id)
	}
}
