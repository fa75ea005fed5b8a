package payments

import (
	"camphub/event-relay/config"
)

type queryProvider interface {
	InsertIgnoringDuplicateSql() string
	FindByRegistrationIdSql() string
	ConfirmSql() string
}

func newQueryProvider(driver config.DbDriver) queryProvider {
	switch {
	case driver.Postgres():
		return postgresQueryProvider{}
	case driver.MySQL():
		return mysqlQueryProvider{}
	default:
		panic("unsupported DB driver for payments")
	}
}

type postgresQueryProvider struct {
}

func (p postgresQueryProvider) InsertIgnoringDuplicateSql() string {
	return `INSERT INTO payments (id, registration_id, participant_id, amount_cents, currency, link_url, status) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT ON CONSTRAINT uq_payments_registration_id DO NOTHING;`
}

func (p postgresQueryProvider) FindByRegistrationIdSql() string {
	return `SELECT id, registration_id, participant_id, amount_cents, currency, link_url, status, created_at, confirmed_at FROM payments WHERE registration_id = $1;`
}

func (p postgresQueryProvider) ConfirmSql() string {
	return `UPDATE payments SET status = $1, confirmed_at = $2 WHERE registration_id = $3 AND status != $4;`
}

type mysqlQueryProvider struct {
}

func (p mysqlQueryProvider) InsertIgnoringDuplicateSql() string {
	return "INSERT IGNORE INTO payments (`id`, `registration_id`, `participant_id`, `amount_cents`, `currency`, `link_url`, `status`) VALUES (?, ?, ?, ?, ?, ?, ?);"
}

func (p mysqlQueryProvider) FindByRegistrationIdSql() string {
	return "SELECT `id`, `registration_id`, `participant_id`, `amount_cents`, `currency`, `link_url`, `status`, `created_at`, `confirmed_at` FROM payments WHERE `registration_id` = ?;"
}

func (p mysqlQueryProvider) ConfirmSql() string {
	return "UPDATE payments SET `status` = ?, `confirmed_at` = ? WHERE `registration_id` = ? AND `status` != ?;"
}
