package store

import (
	"context"

	"shop-locator/internal/config"
	"shop-locator/internal/ingest"
	"shop-locator/internal/migrate"
	"shop-locator/internal/model"
	"shop-locator/internal/utils"
)

// Backend: Store 与 PgxStore 的公共能力，入口按 PG_DRIVER 选择实现
type Backend interface {
	ingest.Store
	FindPostcode(ctx context.Context, postcode string) (*model.Postcode, error)
	CountPostcodes(ctx context.Context) (int64, error)
	ListOpenShops(ctx context.Context) ([]model.Shop, error)
	CreateShop(ctx context.Context, s model.Shop) (model.Shop, error)
	EnsureSchema(ctx context.Context) error
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return migrate.EnsureSchema(ctx, migrate.SQLExec(s.db))
}

func (s *PgxStore) EnsureSchema(ctx context.Context) error {
	return migrate.EnsureSchema(ctx, migrate.PgxExec(s.pool))
}

// Open: 连接数据库（含就绪重试）；返回的 close 释放连接池
func Open(ctx context.Context, cfg config.Postgres) (Backend, func(), error) {
	if cfg.Driver == "pgx" {
		pool, err := utils.OpenPgxPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPgxStore(pool), pool.Close, nil
	}
	db, err := utils.OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return AttachDB(db), func() { _ = db.Close() }, nil
}
