package migrate

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"shop-locator/internal/logger"
)

// ExecFunc：执行单条 DDL，屏蔽 database/sql 与 pgxpool 的差异
type ExecFunc func(ctx context.Context, stmt string) error

// SQLExec：基于 *sql.DB
func SQLExec(db *sql.DB) ExecFunc {
	return func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
}

// PgxExec：基于 pgxpool
func PgxExec(pool *pgxpool.Pool) ExecFunc {
	return func(ctx context.Context, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	}
}

// Statements：按顺序执行的建表与索引语句
// 约束：全部为 IF NOT EXISTS，可重复执行；postcode 唯一约束是导入去重的最终保证
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS postcodes (
        id BIGSERIAL PRIMARY KEY,
        postcode VARCHAR(10) NOT NULL UNIQUE,
        latitude DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
        longitude DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_postcodes_latitude ON postcodes(latitude)`,
	`CREATE INDEX IF NOT EXISTS idx_postcodes_longitude ON postcodes(longitude)`,
	`CREATE TABLE IF NOT EXISTS shops (
        id BIGSERIAL PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        status VARCHAR(16) NOT NULL CHECK (status IN ('open', 'closed')),
        type VARCHAR(16) NOT NULL CHECK (type IN ('takeaway', 'shop', 'restaurant')),
        latitude DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
        longitude DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
        max_delivery_distance DOUBLE PRECISION NOT NULL CHECK (max_delivery_distance >= 0),
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_shops_status ON shops(status)`,
}

// 背景：首次运行自动创建所需表与索引，保障后续导入与查询
func EnsureSchema(ctx context.Context, exec ExecFunc) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if err := exec(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
