package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool builds a DSN from cfg, tunes the pool, verifies connectivity and
// returns the ready pool.
func NewPool(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	start := time.Now()

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Database.Host, strconv.Itoa(cfg.Database.Port)),
		Path:   "/" + cfg.Database.Name,
		User:   url.UserPassword(cfg.Database.User, cfg.Database.Password),
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()

	pcfg, err := pgxpool.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("postgres parse dsn: %w", err)
	}

	pcfg.ConnConfig.ConnectTimeout = 5 * time.Second
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = make(map[string]string, 1)
	}
	pcfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pcfg.HealthCheckPeriod = 30 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	log.Info(ctx, "db_connected", "Connected to PostgreSQL database", map[string]any{
		"host":        cfg.Database.Host,
		"port":        cfg.Database.Port,
		"database":    cfg.Database.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return pool, nil
}
