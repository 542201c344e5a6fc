package database

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/noah-isme/health-registry-api/pkg/config"
)

// sqliteLower folds text with Unicode case rules; the built-in LOWER only folds ASCII.
const sqliteLower = "unicode_lower"

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLower, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Open returns a configured database client for the configured driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLite(cfg)
	default:
		return NewPostgres(cfg)
	}
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open(config.DriverPostgres, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewSQLite opens a single-writer SQLite database at cfg.Path with foreign keys enforced.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := "file:" + cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sqlx.Open(config.DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}

	// SQLite serialises writers; one connection keeps transactions from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Lower wraps the SQL expression in the driver's Unicode-aware lower-casing function.
func Lower(exec interface{ DriverName() string }, expr string) string {
	if IsPostgres(exec) {
		return "LOWER(" + expr + ")"
	}
	return sqliteLower + "(" + expr + ")"
}

// IsPostgres reports whether the executor talks to PostgreSQL.
func IsPostgres(exec interface{ DriverName() string }) bool {
	return exec.DriverName() == config.DriverPostgres
}
