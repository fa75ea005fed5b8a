//go:build integration
// +build integration

package integration

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"camphub/event-relay/outbox"

	"github.com/google/uuid"
)

func ensureOutboxTableExists() {
	var q string
	if cfg.DBDriver.MySQL() {
		q = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE event_outbox;", cfg.DBOutboxTable)
	} else {
		q = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (LIKE event_outbox INCLUDING ALL);", cfg.DBOutboxTable)
	}
	_, err := db.Exec(q)
	if err != nil {
		panic(fmt.Sprintf("an error occurred creating the outbox table for integration tests: %s", err))
	}
}

func purgeOutboxTable() {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s;", cfg.DBOutboxTable))
	if err != nil {
		panic(fmt.Sprintf("an error occurred cleaning the outbox table for tests: %s", err))
	}
}

func insertOutboxMessages(msgs []*outbox.Message) {
	tx, err := db.Begin()
	if err != nil {
		panic(fmt.Sprintf("error creating a DB transaction: %s", err))
	}

	for _, msg := range msgs {
		if msg.Id == uuid.Nil {
			msg.Id = uuid.New()
		}
		if msg.Source == "" {
			msg.Source = "integration-tests"
		}

		var q string
		if cfg.DBDriver.MySQL() {
			q = fmt.Sprintf("INSERT INTO `%s` (`id`, `batch_id`, `event_type`, `source`, `trace_id`, `payload_json`, `claimed_at`, `processed_at`, `attempts`, `last_error`, `dead_lettered`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);", cfg.DBOutboxTable)
		} else {
			q = fmt.Sprintf("INSERT INTO %s (id, batch_id, event_type, source, trace_id, payload_json, claimed_at, processed_at, attempts, last_error, dead_lettered) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);", cfg.DBOutboxTable)
		}

		_, err = tx.Exec(q, msg.Id, msg.BatchId, msg.EventType, msg.Source, msg.TraceId, msg.PayloadJson, msg.ClaimedAt, msg.ProcessedAt, msg.Attempts, msg.LastError, msg.DeadLettered)
		if err != nil {
			panic(fmt.Sprintf("failed to insert outbox message in DB: %s", err))
		}
	}

	err = tx.Commit()
	if err != nil {
		panic(fmt.Sprintf("error committing DB transaction: %s", err))
	}
}

func getOutboxMessage(id uuid.UUID) *outbox.Message {
	q := fmt.Sprintf("SELECT id, batch_id, event_type, source, trace_id, payload_json, created_at, claimed_at, processed_at, attempts, last_error, dead_lettered FROM %s WHERE id = ?", cfg.DBOutboxTable)
	if cfg.DBDriver.Postgres() {
		q = strings.Replace(q, "?", "$1", 1)
	}

	res := &outbox.Message{}
	row := db.QueryRow(q, id)
	err := row.Scan(&res.Id, &res.BatchId, &res.EventType, &res.Source, &res.TraceId, &res.PayloadJson, &res.CreatedAt, &res.ClaimedAt, &res.ProcessedAt, &res.Attempts, &res.LastError, &res.DeadLettered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			panic(fmt.Sprintf("no outbox message records found with ID %s", id))
		}
		panic(fmt.Sprintf("an error occurred scanning the outbox message: %s", err))
	}

	return res
}

// waitForOutboxMessage polls the outbox row until cond holds or a timeout
// elapses, returning the last observed state either way.
func waitForOutboxMessage(id uuid.UUID, cond func(*outbox.Message) bool) *outbox.Message {
	deadline := time.Now().Add(10 * time.Second)
	for {
		m := getOutboxMessage(id)
		if cond(m) || time.Now().After(deadline) {
			return m
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func outboxMessageExists(id uuid.UUID) bool {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", cfg.DBOutboxTable)
	if cfg.DBDriver.Postgres() {
		q = strings.Replace(q, "?", "$1", 1)
	}

	var count int
	res := db.QueryRow(q, id)
	if err := res.Scan(&count); err != nil {
		panic(err)
	}

	return count > 0
}
