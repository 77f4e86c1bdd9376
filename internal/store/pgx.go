package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shop-locator/internal/ingest"
	"shop-locator/internal/logger"
	"shop-locator/internal/model"
	"shop-locator/internal/validate"
)

// PgxStore: pgxpool 实现，PG_DRIVER=pgx 时使用
type PgxStore struct {
	pool *pgxpool.Pool
}

func NewPgxStore(pool *pgxpool.Pool) *PgxStore { return &PgxStore{pool: pool} }

func (s *PgxStore) Close() { s.pool.Close() }

func (s *PgxStore) FindPostcode(ctx context.Context, postcode string) (*model.Postcode, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	key := validate.NormalizePostcode(postcode)
	var p model.Postcode
	err := s.pool.QueryRow(ctx, "SELECT postcode, latitude, longitude FROM postcodes WHERE postcode=$1", key).
		Scan(&p.Postcode, &p.Latitude, &p.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		logger.L().Debug("db_postcode_miss", "postcode", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: FindPostcode: %w", err)
	}
	return &p, nil
}

func (s *PgxStore) CountPostcodes(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(1) FROM postcodes").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: CountPostcodes: %w", err)
	}
	return n, nil
}

func (s *PgxStore) ListOpenShops(ctx context.Context) ([]model.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, "SELECT "+shopColumns+" FROM shops WHERE status=$1 ORDER BY id", string(model.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("store: ListOpenShops: %w", err)
	}
	defer rows.Close()

	shops := make([]model.Shop, 0)
	for rows.Next() {
		sh, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListOpenShops: %w", err)
		}
		shops = append(shops, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListOpenShops: %w", err)
	}
	return shops, nil
}

func (s *PgxStore) CreateShop(ctx context.Context, sh model.Shop) (model.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := s.pool.QueryRow(ctx, insertShopSQL, insertShopArgs(sh)...).Scan(&sh.ID, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
		return model.Shop{}, fmt.Errorf("store: CreateShop: %w", err)
	}
	logger.L().Debug("db_shop_created", "id", sh.ID, "name", sh.Name)
	return sh, nil
}

func (s *PgxStore) BeginImport(ctx context.Context) (ingest.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: BeginImport: %w", err)
	}
	logger.L().Debug("db_import_tx_begin", "driver", "pgx")
	return &PgxImportTx{tx: tx}, nil
}

// PgxImportTx: 批次通过嵌套事务（保存点）+ CopyFrom 写入
type PgxImportTx struct {
	tx pgx.Tx
}

var postcodeColumns = []string{"postcode", "latitude", "longitude"}

func (t *PgxImportTx) Exists(ctx context.Context, postcode string) (bool, error) {
	var ok bool
	if err := t.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM postcodes WHERE postcode=$1)", postcode).Scan(&ok); err != nil {
		return false, fmt.Errorf("store: Exists: %w", err)
	}
	return ok, nil
}

func (t *PgxImportTx) InsertBatch(ctx context.Context, rows []model.Postcode) error {
	if len(rows) == 0 {
		return nil
	}
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: InsertBatch: %w", err)
	}
	n, err := sp.CopyFrom(ctx, pgx.Identifier{"postcodes"}, postcodeColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return []any{rows[i].Postcode, rows[i].Latitude, rows[i].Longitude}, nil
	}))
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("store: InsertBatch: %w", errors.Join(err, rbErr))
		}
		return fmt.Errorf("store: InsertBatch: %w", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("store: InsertBatch: %w", err)
	}
	logger.L().Debug("db_import_batch", "driver", "pgx", "rows", n)
	return nil
}

func (t *PgxImportTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: Commit: %w", err)
	}
	return nil
}

func (t *PgxImportTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("store: Rollback: %w", err)
	}
	return nil
}
