package outbox

import (
	"context"
	"database/sql"

	"camphub/event-relay/config"
	"camphub/event-relay/event"

	"github.com/pkg/errors"
)

// Tx is the subset of *sql.Tx the writer needs. Enqueue only ever stages a row
// on the caller's transaction, committing is the caller's job.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Writer is the event bus façade that domain handlers call. It never talks to
// the broker, the staged row is picked up later by the dispatcher once the
// surrounding transaction has committed.
type Writer struct {
	source        string
	queryProvider queryProvider
}

type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	traceId string
}

// WithTraceId propagates a caller-supplied correlation id into the envelope.
func WithTraceId(traceId string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.traceId = traceId
	}
}

func NewWriter(cfg *config.Config) *Writer {
	return NewWriterWithQueryProvider(cfg.ServiceName, newQueryProvider(cfg.DBDriver, cfg.DBOutboxTable, columns))
}

func NewWriterWithQueryProvider(source string, qp queryProvider) *Writer {
	return &Writer{
		source:        source,
		queryProvider: qp,
	}
}

// Enqueue stages exactly one outbox row on tx describing the given event.
// Serialization errors propagate synchronously so the caller aborts the whole
// transaction rather than committing a domain change without its event.
func (w *Writer) Enqueue(ctx context.Context, tx Tx, eventType string, data interface{}, opts ...EnqueueOption) error {
	o := &enqueueOptions{}
	for _, opt := range opts {
		opt(o)
	}

	env, err := event.New(eventType, w.source, data, o.traceId)
	if err != nil {
		return err
	}

	payload, err := env.Marshal()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, w.queryProvider.InsertSql(), env.Id, env.Type, env.Source, env.TraceId, payload)
	if err != nil {
		return errors.Wrapf(err, "outbox: unable to stage %s event", eventType)
	}

	return nil
}
