package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig tunes the underlying sql.DB.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Initialize opens the database and applies pending schema migrations.
func Initialize(databaseURL string, pool PoolConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(databaseURL, pool)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized", zap.String("dialect", db.Dialector.Name()))

	if err := Migrate(db, log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Open connects without migrating. The dialect follows the DSN:
// postgres:// and postgresql:// use Postgres, sqlite:// and file: use the
// pure-Go SQLite driver, anything else is a MySQL DSN.
func Open(databaseURL string, pool PoolConfig) (*gorm.DB, error) {
	dialector, isSQLite := dialectorFor(databaseURL)

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if isSQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY
		// and keeps in-memory databases alive for the pool's lifetime.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return db, nil
	}

	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 100
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, bool) {
	dsn := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), false
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return sqlite.Open(dsn), true
	default:
		return mysql.Open(dsn), false
	}
}
