package db

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pkgconfig "pulse-digest/internal/pkg/config"
)

// PoolConfig holds connection pool tuning. The pipeline opens bursts of
// short transactions per stage, so the pool is sized for spikes rather than
// steady load.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool tuning used when no overrides are set.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open connects to the database named by DATABASE_URL and applies pool
// tuning from the environment. A missing DATABASE_URL is fatal: every
// process in the system needs the record store.
func Open() *sql.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal(err)
	}

	cfg := loadPoolConfig()
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	slog.Info("database connection established")
	return db
}

// loadPoolConfig reads pool tuning overrides from the environment. Parse
// failures fall back to the defaults with a warning; pool tuning is never
// a reason to refuse to start.
func loadPoolConfig() PoolConfig {
	defaults := DefaultPoolConfig()

	maxOpen := pkgconfig.LoadEnvInt("DB_MAX_OPEN_CONNS", defaults.MaxOpenConns, positiveInt)
	maxIdle := pkgconfig.LoadEnvInt("DB_MAX_IDLE_CONNS", defaults.MaxIdleConns, positiveInt)
	lifetime := pkgconfig.LoadEnvDuration("DB_CONN_MAX_LIFETIME", defaults.ConnMaxLifetime, pkgconfig.ValidatePositiveDuration)
	idleTime := pkgconfig.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", defaults.ConnMaxIdleTime, pkgconfig.ValidatePositiveDuration)

	for _, result := range []pkgconfig.ConfigLoadResult{maxOpen, maxIdle, lifetime, idleTime} {
		for _, warning := range result.Warnings {
			slog.Warn("pool configuration fallback", slog.String("warning", warning))
		}
	}

	return PoolConfig{
		MaxOpenConns:    maxOpen.Value.(int),
		MaxIdleConns:    maxIdle.Value.(int),
		ConnMaxLifetime: lifetime.Value.(time.Duration),
		ConnMaxIdleTime: idleTime.Value.(time.Duration),
	}
}

func positiveInt(value int) error {
	return pkgconfig.ValidateIntRange(value, 1, 10000)
}
