package sql

import (
	"fmt"
	"strings"
)

type PostgresQueryProvider struct {
	Table   string
	Columns []string
}

func (p PostgresQueryProvider) InsertSql() string {
	q := `INSERT INTO %s (id, event_type, source, trace_id, payload_json, created_at) VALUES ($1, $2, $3, $4, $5, NOW())`

	return fmt.Sprintf(q, p.Table)
}

func (p PostgresQueryProvider) MessagesSuccessUpdateSql(idCount int) string {
	q := `UPDATE %s SET processed_at = NOW(), last_error = '', attempts = attempts + 1 WHERE id IN (%s)`

	var placeholders []string
	for i := 1; i <= idCount; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
	}

	return fmt.Sprintf(q, p.Table, strings.Join(placeholders, ", "))
}

func (p PostgresQueryProvider) MessageErroredUpdateSql(maxAttempts int) string {
	q := `UPDATE %s SET last_error = $1, dead_lettered = (attempts + 1 >= %d), claimed_at = NULL, batch_id = NULL, attempts = attempts + 1 WHERE id = $2`

	return fmt.Sprintf(q, p.Table, maxAttempts)
}

func (p PostgresQueryProvider) BatchCreationSql(batchSize int) string {
	q := `UPDATE %s SET batch_id = $1, claimed_at = NOW()
		WHERE id IN(
			SELECT id FROM %s WHERE ((batch_id IS NULL AND claimed_at IS NULL) OR
		(batch_id IS NOT NULL AND claimed_at < $2)) AND processed_at IS NULL AND dead_lettered = $3 ORDER BY created_at ASC LIMIT %d)`

	return fmt.Sprintf(q, p.Table, p.Table, batchSize)
}

func (p PostgresQueryProvider) BatchFetchSql() string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE batch_id = $1 ORDER BY created_at ASC`, strings.Join(p.Columns, ", "), p.Table)
}

func (p PostgresQueryProvider) DeletePublishedMessagesSql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE processed_at <= $1", p.Table)
}

func (p PostgresQueryProvider) GetQueueSizeSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE processed_at IS NULL AND dead_lettered = FALSE", p.Table)
}

func (p PostgresQueryProvider) GetTotalSizeSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", p.Table)
}
