package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
)

type mockConn struct {
	listenSql     string
	execErr       error
	waitErr       error
	notifyAfter   time.Duration
	closed        bool
	waitCallCount int
}

func (m *mockConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	m.listenSql = sql
	return nil, m.execErr
}

func (m *mockConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	m.waitCallCount++

	if m.waitErr != nil {
		return nil, m.waitErr
	}

	t := time.NewTimer(m.notifyAfter)
	defer t.Stop()

	select {
	case <-t.C:
		return &pgconn.Notification{Channel: Channel}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockConn) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

func newTestListener(c *mockConn, dialErr error) *Listener {
	return &Listener{
		url:          "postgres://test",
		watchdog:     time.Millisecond * 20,
		pollInterval: time.Millisecond * 5,
		dial: func(ctx context.Context, url string) (conn, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return c, nil
		},
	}
}

func TestListener_WaitReturnsOnNotification(t *testing.T) {
	c := &mockConn{notifyAfter: time.Millisecond}
	l := newTestListener(c, nil)

	start := time.Now()
	l.Wait(context.Background())

	if elapsed := time.Since(start); elapsed >= l.watchdog {
		t.Errorf("expected wait to return on notification, but it took %s", elapsed)
	}

	if c.listenSql != "LISTEN "+Channel {
		t.Errorf("expected LISTEN to be issued on the notification channel, got %q", c.listenSql)
	}

	if l.conn == nil {
		t.Error("expected the connection to be kept for the next wait")
	}
}

func TestListener_WaitReturnsOnWatchdog(t *testing.T) {
	c := &mockConn{notifyAfter: time.Second}
	l := newTestListener(c, nil)

	l.Wait(context.Background())

	if l.conn == nil {
		t.Error("expected the connection to survive a watchdog timeout")
	}

	if c.closed {
		t.Error("expected the connection to stay open after a watchdog timeout")
	}
}

func TestListener_WaitFallsBackWhenDialFails(t *testing.T) {
	l := newTestListener(nil, errors.New("connection refused"))

	start := time.Now()
	l.Wait(context.Background())

	if elapsed := time.Since(start); elapsed < l.pollInterval {
		t.Errorf("expected wait to sleep for the poll interval, but it returned after %s", elapsed)
	}

	if l.conn == nil {
		return
	}

	t.Error("expected no connection to be kept when dialling fails")
}

func TestListener_WaitFallsBackWhenListenFails(t *testing.T) {
	c := &mockConn{execErr: errors.New("permission denied")}
	l := newTestListener(c, nil)

	l.Wait(context.Background())

	if !c.closed {
		t.Error("expected the connection to be closed when LISTEN fails")
	}

	if l.conn != nil {
		t.Error("expected no connection to be kept when LISTEN fails")
	}
}

func TestListener_WaitDropsConnectionOnFailure(t *testing.T) {
	c := &mockConn{waitErr: errors.New("unexpected EOF")}
	l := newTestListener(c, nil)

	l.Wait(context.Background())

	if !c.closed {
		t.Error("expected a failed connection to be closed")
	}

	if l.conn != nil {
		t.Error("expected a failed connection to be discarded for reconnection")
	}
}

func TestListener_WaitReturnsOnContextCancellation(t *testing.T) {
	c := &mockConn{notifyAfter: time.Second}
	l := newTestListener(c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(time.Millisecond)
		cancel()
	}()

	start := time.Now()
	l.Wait(ctx)

	if elapsed := time.Since(start); elapsed >= l.watchdog {
		t.Errorf("expected wait to return on cancellation, but it took %s", elapsed)
	}
}

func TestListener_Close(t *testing.T) {
	c := &mockConn{notifyAfter: time.Millisecond}
	l := newTestListener(c, nil)
	l.Wait(context.Background())

	if err := l.Close(context.Background()); err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	if !c.closed {
		t.Error("expected the underlying connection to be closed")
	}

	if l.conn != nil {
		t.Error("expected the connection to be discarded after close")
	}
}
