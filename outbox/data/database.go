package data

import (
	"database/sql"
	"time"

	"camphub/event-relay/config"
	"camphub/event-relay/log"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	connectionAttempts    = 30
	maxOpenConnections    = 10
	maxIdleConnections    = 5
	maxConnectionLifetime = time.Minute * 1
)

type DBs []DB

type DB struct {
	db  *sql.DB
	cfg *config.Config
}

func NewDB(db *sql.DB, cfg *config.Config) DB {
	return DB{
		db:  db,
		cfg: cfg,
	}
}

func (dbs DBs) Each(callback func(db DB)) {
	for _, db := range dbs {
		callback(db)
	}
}

func (dbs DBs) Ping() error {
	for _, db := range dbs {
		if err := db.db.Ping(); err != nil {
			return err
		}
	}

	return nil
}

func (db DB) Config() *config.Config {
	return db.cfg
}

func (db DB) Connection() *sql.DB {
	return db.db
}

func init() {
	setupLoggers()
}

func setupLoggers() {
	err := mysql.SetLogger(log.Logger)
	if err != nil {
		log.Logger.WithError(err).Fatalf("unable to set up JSON logger for MySQL driver")
	}
}

// NewDBs creates the configured database connections. It will also apply
// migrations on the databases automatically, unless migrations are disabled
// in config.
func NewDBs(cfg *config.Config) (DBs, func()) {
	log.Logger.Debug("connecting to the database")

	db, err := sql.Open(driverName(cfg.DBDriver), cfg.GetDSN())
	if err != nil {
		log.Logger.Fatalf("unable to connect to the database: %s", err)
	}

	db.SetMaxOpenConns(maxOpenConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(maxConnectionLifetime)

	connectToDatabase(cfg, db)
	dbs := DBs{NewDB(db, cfg)}

	cleanup := func() {
		for _, db := range dbs {
			if err := db.db.Close(); err != nil {
				log.Logger.WithError(err).Error("error closing database during shutdown process")
			}
		}
	}

	return dbs, cleanup
}

func connectToDatabase(cfg *config.Config, db *sql.DB) {
	tries := connectionAttempts
	for {
		err := db.Ping()
		if err == nil {
			break
		}

		time.Sleep(time.Second * 1)
		tries--
		log.Logger.Infof("database is not available (err: %s), retrying %d more time(s)", err, tries)

		if tries == 0 {
			log.Logger.Fatalf("database did not become available within %d connection attempts", connectionAttempts)
		}
	}

	MigrateDatabase(db, cfg)
}

func driverName(d config.DbDriver) string {
	if d.Postgres() {
		return "pgx"
	}

	return d.String()
}
