// 包 store: 邮编参考表与店铺表的数据访问层；lib/pq（database/sql）与 pgxpool 两套实现语义一致
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"shop-locator/internal/ingest"
	"shop-locator/internal/logger"
	"shop-locator/internal/model"
	"shop-locator/internal/validate"
)

// queryTimeout: 单条查询的超时，导入事务内的语句不受此限制
const queryTimeout = 5 * time.Second

const shopColumns = "id, name, status, type, latitude, longitude, max_delivery_distance, created_at, updated_at"

// Store: 基于 database/sql 的数据库访问入口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// FindPostcode: 按规范化邮编查询坐标；未命中返回 (nil, nil)
func (s *Store) FindPostcode(ctx context.Context, postcode string) (*model.Postcode, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	key := validate.NormalizePostcode(postcode)
	var p model.Postcode
	err := s.db.QueryRowContext(ctx, "SELECT postcode, latitude, longitude FROM postcodes WHERE postcode=$1", key).
		Scan(&p.Postcode, &p.Latitude, &p.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		logger.L().Debug("db_postcode_miss", "postcode", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: FindPostcode: %w", err)
	}
	return &p, nil
}

// CountPostcodes: 参考表行数，用于空表自动导入判断
func (s *Store) CountPostcodes(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM postcodes").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: CountPostcodes: %w", err)
	}
	return n, nil
}

// ListOpenShops: 全部营业中店铺，按 id 升序（排名时同距离保持该顺序）
func (s *Store) ListOpenShops(ctx context.Context) ([]model.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT "+shopColumns+" FROM shops WHERE status=$1 ORDER BY id", string(model.StatusOpen))
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

// CreateShop: 写入已校验的店铺，回填 id 与时间戳
func (s *Store) CreateShop(ctx context.Context, sh model.Shop) (model.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := s.db.QueryRowContext(ctx, insertShopSQL, insertShopArgs(sh)...).Scan(&sh.ID, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return model.Shop{}, fmt.Errorf("store: CreateShop: %w", err)
	}
	logger.L().Debug("db_shop_created", "id", sh.ID, "name", sh.Name)
	return sh, nil
}

const insertShopSQL = `INSERT INTO shops(name, status, type, latitude, longitude, max_delivery_distance)
    VALUES($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`

func insertShopArgs(sh model.Shop) []any {
	return []any{sh.Name, string(sh.Status), string(sh.Type), sh.Latitude, sh.Longitude, sh.MaxDeliveryDistance}
}

// scanner: *sql.Row / *sql.Rows / pgx.Row 的公共扫描接口
type scanner interface {
	Scan(dest ...any) error
}

func scanShop(r scanner) (model.Shop, error) {
	var (
		sh             model.Shop
		status, shType string
	)
	if err := r.Scan(&sh.ID, &sh.Name, &status, &shType, &sh.Latitude, &sh.Longitude, &sh.MaxDeliveryDistance, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
		return model.Shop{}, err
	}
	sh.Status = model.ShopStatus(status)
	sh.Type = model.ShopType(shType)
	return sh, nil
}

// BeginImport: 开启一次导入运行的事务
func (s *Store) BeginImport(ctx context.Context) (ingest.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: BeginImport: %w", err)
	}
	logger.L().Debug("db_import_tx_begin")
	return &ImportTx{tx: tx}, nil
}

// ImportTx: 每个批次包在独立的 SAVEPOINT 中用 COPY 写入
// 约束：批次失败只回滚到该批次的保存点，事务仍可继续或整体回滚
type ImportTx struct {
	tx  *sql.Tx
	seq int
}

func (t *ImportTx) Exists(ctx context.Context, postcode string) (bool, error) {
	var ok bool
	err := t.tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM postcodes WHERE postcode=$1)", postcode).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("store: Exists: %w", err)
	}
	return ok, nil
}

func (t *ImportTx) InsertBatch(ctx context.Context, rows []model.Postcode) error {
	if len(rows) == 0 {
		return nil
	}
	t.seq++
	sp := fmt.Sprintf("import_batch_%d", t.seq)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("store: InsertBatch: %w", err)
	}
	if err := t.copyRows(ctx, rows); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return fmt.Errorf("store: InsertBatch: %w", errors.Join(err, rbErr))
		}
		return fmt.Errorf("store: InsertBatch: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("store: InsertBatch: %w", err)
	}
	logger.L().Debug("db_import_batch", "rows", len(rows), "seq", t.seq)
	return nil
}

func (t *ImportTx) copyRows(ctx context.Context, rows []model.Postcode) error {
	stmt, err := t.tx.PrepareContext(ctx, pq.CopyIn("postcodes", "postcode", "latitude", "longitude"))
	if err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Postcode, r.Latitude, r.Longitude); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	return stmt.Close()
}

// Commit: database/sql 的事务绑定 BeginTx 的上下文，这里的 ctx 只用于提前返回
func (t *ImportTx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: Commit: %w", err)
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: Commit: %w", err)
	}
	return nil
}

// Rollback: 已提交或已回滚时返回 nil
func (t *ImportTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("store: Rollback: %w", err)
	}
	return nil
}
