package utils

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"shop-locator/internal/config"
	"shop-locator/internal/logger"
)

// retryDelay：两次就绪探测之间的等待
var retryDelay = 2 * time.Second

// waitReady：容器编排下数据库可能晚于服务启动，按固定间隔探测直到成功或重试耗尽
func waitReady(ctx context.Context, retries int, ping func(context.Context) error) error {
	var err error
	for i := 0; ; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i >= retries {
			return err
		}
		logger.L().Warn("db_wait_ready", "attempt", i+1, "retries", retries, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// OpenPostgres：lib/pq + database/sql 连接池
func OpenPostgres(ctx context.Context, cfg config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := waitReady(ctx, cfg.ConnectRetries, db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	logger.L().Info("db_open_ok", "driver", "pq", "host", cfg.Host, "db", cfg.DB)
	return db, nil
}

// OpenPgxPool：pgx 原生连接池，MaxConns 取自 PG_MAX_OPEN_CONNS
func OpenPgxPool(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := waitReady(ctx, cfg.ConnectRetries, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	logger.L().Info("db_open_ok", "driver", "pgx", "host", cfg.Host, "db", cfg.DB)
	return pool, nil
}
