package outbox

import (
	"context"
	"database/sql"
	"time"

	"camphub/event-relay/config"
	"camphub/event-relay/log"
	s "camphub/event-relay/outbox/data/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// staleClaimAge is how long a claimed but uncommitted batch row is honoured
// before another dispatcher instance may reclaim it.
const staleClaimAge = 10 * time.Minute

var (
	ErrNoEvents = errors.New("no events in the batch")

	columns = []string{"id", "batch_id", "event_type", "source", "trace_id", "payload_json", "created_at", "claimed_at", "processed_at", "attempts", "last_error", "dead_lettered"}
)

type queryProvider interface {
	InsertSql() string
	BatchCreationSql(batchSize int) string
	BatchFetchSql() string
	MessageErroredUpdateSql(maxAttempts int) string
	MessagesSuccessUpdateSql(idCount int) string
	DeletePublishedMessagesSql() string
	GetQueueSizeSql() string
	GetTotalSizeSql() string
}

type Repository struct {
	db            *sql.DB
	cfg           *config.Config
	queryProvider queryProvider
}

func NewRepository(db *sql.DB, cfg *config.Config) Repository {
	return NewRepositoryWithQueryProvider(db, cfg, newQueryProvider(cfg.DBDriver, cfg.DBOutboxTable, columns))
}

func NewRepositoryWithQueryProvider(db *sql.DB, cfg *config.Config, qp queryProvider) Repository {
	return Repository{
		db:            db,
		cfg:           cfg,
		queryProvider: qp,
	}
}

// GetBatch claims a new batch of unprocessed rows in enqueue order and then
// returns them. The claim prevents other dispatcher instances picking up the
// same rows, stale claims are reclaimed after staleClaimAge.
// If no rows are eligible the special ErrNoEvents value is returned as the
// error.
func (r Repository) GetBatch() (*Batch, error) {
	batchId := uuid.New()
	stale := time.Now().In(time.UTC).Add(-staleClaimAge)

	upSql := r.queryProvider.BatchCreationSql(r.cfg.BatchSize)

	res, err := r.db.Exec(upSql, batchId, stale, false)
	if err != nil {
		return nil, errors.Errorf("outbox: error creating a batch of events in repository: %s", err)
	}

	// if there is an error determining the affected rows, we treat it as a failed query
	// as the drivers we use never return an error value here
	count, _ := res.RowsAffected()
	if count < 1 {
		return nil, ErrNoEvents
	}

	rows, err := r.db.Query(r.queryProvider.BatchFetchSql(), batchId)
	if err != nil {
		return nil, errors.Errorf("outbox: error fetching created event batch in repository: %s", err)
	}
	defer rows.Close()

	batch := &Batch{
		Id:       batchId,
		Messages: []*Message{},
	}

	for rows.Next() {
		msg := &Message{}
		err := rows.Scan(&msg.Id, &msg.BatchId, &msg.EventType, &msg.Source, &msg.TraceId, &msg.PayloadJson, &msg.CreatedAt, &msg.ClaimedAt, &msg.ProcessedAt, &msg.Attempts, &msg.LastError, &msg.DeadLettered)
		if err != nil {
			return nil, errors.Errorf("outbox: error scanning event result into memory in repository: %s", err)
		}
		batch.Messages = append(batch.Messages, msg)
	}

	return batch, nil
}

// CommitBatch persists the outcome of a whole dispatch cycle in one
// transaction. Published rows become terminal, failed rows release their
// claim and stay eligible until they dead-letter.
func (r Repository) CommitBatch(ctx context.Context, batch *Batch) {
	log.Logger.WithFields(logrus.Fields{
		"batch_id":     batch.Id.String(),
		"num_messages": len(batch.Messages),
	}).Debug("starting batch commit")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Logger.Errorf("error occurred starting a DB transaction to commit the batch: %s", err)
		return
	}

	var successIds []interface{}
	for _, msg := range batch.Messages {
		if msg.ErrorReason != nil {
			r.updateErroredMessage(tx, msg)
		} else {
			successIds = append(successIds, msg.Id)
		}
	}

	if len(successIds) > 0 {
		err = r.updateSuccessfulMessages(tx, successIds)
		if err != nil {
			log.Logger.Errorf("error occurred updating successful outbox messages for batch ID %s: %s", batch.Id, err)
			err = tx.Rollback()
			if err != nil {
				log.Logger.Errorf("error rolling back the DB transaction: %s", err)
			}
			return
		}
	}

	err = tx.Commit()
	if err != nil {
		log.Logger.Errorf("error occurred committing transaction for batch: %s", err)
	}
}

func (r Repository) DeletePublished(olderThan time.Time) (int64, error) {
	q := r.queryProvider.DeletePublishedMessagesSql()
	res, err := r.db.Exec(q, olderThan)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r Repository) GetQueueSize() (uint, error) {
	q := r.queryProvider.GetQueueSizeSql()
	res := r.db.QueryRow(q)

	var count uint
	err := res.Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r Repository) GetTotalSize() (uint, error) {
	q := r.queryProvider.GetTotalSizeSql()
	res := r.db.QueryRow(q)

	var count uint
	err := res.Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r Repository) updateErroredMessage(tx *sql.Tx, msg *Message) {
	q := r.queryProvider.MessageErroredUpdateSql(r.cfg.PublishAttempts)
	_, err := tx.Exec(q, msg.ErrorReason.Error(), msg.Id)

	log.Logger.WithFields(logrus.Fields{"query": q, "error_reason": msg.ErrorReason, "id": msg.Id}).Debug("updating errored message")

	if err != nil {
		log.Logger.Errorf("error occurred updating the outbox message with ID %s: %s", msg.Id, err)
	}
}

func (r Repository) updateSuccessfulMessages(tx *sql.Tx, ids []interface{}) error {
	q := r.queryProvider.MessagesSuccessUpdateSql(len(ids))

	log.Logger.WithFields(logrus.Fields{"query": q, "ids": ids}).Debug("updating successful messages")

	_, err := tx.Exec(q, ids...)

	return err
}

func newQueryProvider(d config.DbDriver, table string, columns []string) queryProvider {
	switch true {
	case d.Postgres():
		return &s.PostgresQueryProvider{
			Table:   table,
			Columns: columns,
		}
	case d.MySQL():
		return &s.MysqlQueryProvider{
			Table:   table,
			Columns: columns,
		}
	}

	return nil
}
