package notify

import (
	"context"
	"time"

	"camphub/event-relay/config"
	"camphub/event-relay/log"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// Channel is the Postgres notification channel fired by the outbox insert
// trigger. It must match the channel name used in the migrations.
const Channel = "event_outbox_new"

type conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

type dialFunc func(ctx context.Context, url string) (conn, error)

// Listener implements the hybrid push/pull wake-up for the dispatcher. Wait
// blocks until the outbox trigger signals a new row or the watchdog elapses.
// The notification is best-effort only, a dropped one costs at most one
// watchdog period, and any listener failure degrades to plain sleeping so the
// dispatcher never stalls.
type Listener struct {
	url          string
	watchdog     time.Duration
	pollInterval time.Duration
	dial         dialFunc
	conn         conn
}

func NewListener(cfg *config.Config) *Listener {
	return &Listener{
		url:          cfg.GetDSN(),
		watchdog:     cfg.GetNotifyWatchdogDuration(),
		pollInterval: cfg.GetPollIntervalDurationInMs(),
		dial: func(ctx context.Context, url string) (conn, error) {
			return pgx.Connect(ctx, url)
		},
	}
}

func (l *Listener) Wait(ctx context.Context) {
	if l.conn == nil {
		if err := l.listen(ctx); err != nil {
			log.Logger.WithError(err).Error("unable to listen for outbox notifications, falling back to polling")
			l.sleep(ctx)
			return
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.watchdog)
	defer cancel()

	_, err := l.conn.WaitForNotification(waitCtx)
	if err == nil {
		return
	}

	// the watchdog elapsing is the expected pull fallback
	if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return
	}

	if ctx.Err() != nil {
		return
	}

	log.Logger.WithError(err).Error("outbox notification connection failed, reconnecting on the next cycle")
	_ = l.conn.Close(context.Background())
	l.conn = nil
	l.sleep(ctx)
}

func (l *Listener) Close(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}

	err := l.conn.Close(ctx)
	l.conn = nil

	return err
}

func (l *Listener) listen(ctx context.Context) error {
	c, err := l.dial(ctx, l.url)
	if err != nil {
		return err
	}

	if _, err = c.Exec(ctx, "LISTEN "+Channel); err != nil {
		_ = c.Close(context.Background())
		return err
	}

	l.conn = c

	return nil
}

func (l *Listener) sleep(ctx context.Context) {
	t := time.NewTimer(l.pollInterval)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
