package sql

import (
	"fmt"
	"strings"
)

type MysqlQueryProvider struct {
	Table   string
	Columns []string
}

func (m MysqlQueryProvider) InsertSql() string {
	q := "INSERT INTO `%s` (`id`, `event_type`, `source`, `trace_id`, `payload_json`, `created_at`) VALUES (?, ?, ?, ?, ?, NOW())"

	return fmt.Sprintf(q, m.Table)
}

func (m MysqlQueryProvider) MessagesSuccessUpdateSql(idCount int) string {
	q := `UPDATE %s SET processed_at = NOW(), last_error = "", attempts = attempts + 1 WHERE id IN (%s)`

	return fmt.Sprintf(q, m.Table, strings.Trim(strings.Repeat("?, ", idCount), ", "))
}

func (m MysqlQueryProvider) MessageErroredUpdateSql(maxAttempts int) string {
	q := "UPDATE `%s` SET `last_error` = ?, `dead_lettered` = IF((`attempts` + 1) >= %d, 1, 0), `claimed_at` = NULL, `batch_id` = NULL, `attempts` = `attempts` + 1 WHERE `id` = ?"

	return fmt.Sprintf(q, m.Table, maxAttempts)
}

func (m MysqlQueryProvider) BatchCreationSql(batchSize int) string {
	q := `UPDATE %s SET batch_id = ?, claimed_at = NOW()
		WHERE ((batch_id IS NULL AND claimed_at IS NULL) OR
		(batch_id IS NOT NULL AND claimed_at < ?)) AND processed_at IS NULL AND dead_lettered = ? ORDER BY created_at ASC LIMIT %d`

	return fmt.Sprintf(q, m.Table, batchSize)
}

func (m MysqlQueryProvider) BatchFetchSql() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE batch_id = ? ORDER BY created_at ASC", strings.Join(m.escapeColumns(), ", "), m.Table)
}

func (m MysqlQueryProvider) DeletePublishedMessagesSql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE processed_at <= ?", m.Table)
}

func (m MysqlQueryProvider) GetQueueSizeSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE processed_at IS NULL AND dead_lettered = 0", m.Table)
}

func (m MysqlQueryProvider) GetTotalSizeSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", m.Table)
}

func (m MysqlQueryProvider) escapeColumns() []string {
	var escaped []string
	for _, c := range m.Columns {
		escaped = append(escaped, "`"+c+"`")
	}

	return escaped
}
