package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/workshop-orchestrator/pkg/config"
)

const applicationName = "workshop-orchestrator"

const (
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultConnectTimeout  = 5 * time.Second
)

// NewPostgres opens the audit store and waits at most cfg.ConnectTimeout for
// the first ping.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}
	configurePool(db, cfg)

	if err := ping(ctx, db, cfg.ConnectTimeout); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit store %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}

// DSN renders cfg as a libpq keyword/value string. Empty settings are left to
// the driver defaults.
func DSN(cfg config.DatabaseConfig) string {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	seconds := int(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", ""},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Name},
		{"sslmode", cfg.SSLMode},
		{"connect_timeout", strconv.Itoa(seconds)},
		{"application_name", applicationName},
	}
	if cfg.Port > 0 {
		pairs[1][1] = strconv.Itoa(cfg.Port)
	}

	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv[1] == "" {
			continue
		}
		parts = append(parts, kv[0]+"="+quoteDSNValue(kv[1]))
	}
	return strings.Join(parts, " ")
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, " '\\\t") {
		return v
	}
	return "'" + dsnEscaper.Replace(v) + "'"
}

func configurePool(db *sqlx.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	lifetime, idle := cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	if idle <= 0 {
		idle = defaultConnMaxIdleTime
	}
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idle)
}

func ping(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}
