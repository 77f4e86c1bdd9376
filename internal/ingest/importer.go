// 包 ingest：邮编数据集导入流水线（下载 → 解压 → 流式解析 → 校验去重 → 分批写入）
// 约束：单次运行为一个事务范围，任一存储错误整体回滚；内存中只保留一个批次
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shop-locator/internal/logger"
	"shop-locator/internal/metrics"
	"shop-locator/internal/model"
	"shop-locator/internal/validate"
)

// State：导入状态机
// Idle -> Downloading -> Extracting -> Streaming -> (Accumulating <-> Flushing) -> Completed；任一非终态可转 Failed
type State string

const (
	StateIdle         State = "idle"
	StateDownloading  State = "downloading"
	StateExtracting   State = "extracting"
	StateStreaming    State = "streaming"
	StateAccumulating State = "accumulating"
	StateFlushing     State = "flushing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal：Completed 与 Failed 为终态
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Tx：一次导入运行持有的事务
// 约束：Exists 能看到本事务内已写入的批次；InsertBatch 按批原子，失败后事务仍可继续使用
// Rollback 收到的上下文不随运行取消，已结束的事务返回 nil
type Tx interface {
	Exists(ctx context.Context, postcode string) (bool, error)
	InsertBatch(ctx context.Context, rows []model.Postcode) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// rollbackTimeout：运行被取消后回滚的时限
const rollbackTimeout = 5 * time.Second

// Store：开启导入事务
type Store interface {
	BeginImport(ctx context.Context) (Tx, error)
}

// StoreFunc：函数适配为 Store
type StoreFunc func(ctx context.Context) (Tx, error)

func (f StoreFunc) BeginImport(ctx context.Context) (Tx, error) { return f(ctx) }

// Config：导入参数，构造时显式传入
type Config struct {
	BatchSize       int
	MaxRecords      int // <= 0 表示不限
	PostcodeColumn  int
	LatitudeColumn  int
	LongitudeColumn int
	SkipHeader      bool
	Comma           rune
	FlushRetries    int
}

// DefaultConfig：ONSPD 列布局（邮编 0、纬度 42、经度 43），批量 1000，最多 50 行
func DefaultConfig() Config {
	return Config{
		BatchSize:       1000,
		MaxRecords:      50,
		PostcodeColumn:  0,
		LatitudeColumn:  42,
		LongitudeColumn: 43,
		SkipHeader:      true,
		Comma:           ',',
	}
}

// Validate：返回首个不合法字段的 ConfigError
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "BatchSize", Message: "must be a positive integer"}
	}
	if c.PostcodeColumn < 0 || c.LatitudeColumn < 0 || c.LongitudeColumn < 0 {
		return &ConfigError{Field: "Columns", Message: "column indexes must not be negative"}
	}
	if c.FlushRetries < 0 {
		return &ConfigError{Field: "FlushRetries", Message: "must not be negative"}
	}
	return nil
}

func (c Config) minFields() int {
	return max(c.PostcodeColumn, c.LatitudeColumn, c.LongitudeColumn) + 1
}

// Progress：进度通知，携带当前状态与累计计数
type Progress struct {
	RunID      string
	State      State
	Processed  int
	Inserted   int
	Invalid    int
	Duplicates int
	Batches    int
}

type ProgressFunc func(Progress)

// Result：运行结果；失败时计数为失败时刻的值
type Result struct {
	RunID      string
	State      State
	Processed  int
	Inserted   int
	Invalid    int
	Duplicates int
	Batches    int
	Duration   time.Duration
}

type Importer struct {
	store      Store
	cfg        Config
	lock       Lock
	onProgress ProgressFunc
	log        *slog.Logger

	mu      sync.Mutex
	state   State
	running bool
}

type Option func(*Importer)

// WithLock：跨进程运行锁，默认不加锁
func WithLock(l Lock) Option { return func(im *Importer) { im.lock = l } }

// WithProgress：状态变化与每次批次边界时回调
func WithProgress(fn ProgressFunc) Option { return func(im *Importer) { im.onProgress = fn } }

func WithLogger(l *slog.Logger) Option { return func(im *Importer) { im.log = l } }

func NewImporter(store Store, cfg Config, opts ...Option) *Importer {
	im := &Importer{store: store, cfg: cfg, lock: NopLock{}, state: StateIdle}
	for _, o := range opts {
		o(im)
	}
	if im.log == nil {
		im.log = logger.L()
	}
	return im
}

// State：当前状态，可在其他协程读取
func (im *Importer) State() State {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.state
}

// run：单次运行的可变状态
type run struct {
	id         string
	started    time.Time
	tx         Tx
	buffer     []model.Postcode
	pending    map[string]struct{}
	processed  int
	inserted   int
	invalid    int
	duplicates int
	batches    int
	state      State
}

func (r *run) result() Result {
	return Result{
		RunID:      r.id,
		State:      r.state,
		Processed:  r.processed,
		Inserted:   r.inserted,
		Invalid:    r.invalid,
		Duplicates: r.duplicates,
		Batches:    r.batches,
		Duration:   time.Since(r.started),
	}
}

func (im *Importer) transition(r *run, s State) {
	im.mu.Lock()
	im.state = s
	im.mu.Unlock()
	r.state = s
	im.log.Debug("import_state", "run_id", r.id, "state", string(s), "processed", r.processed)
	im.notify(r)
}

func (im *Importer) notify(r *run) {
	if im.onProgress == nil {
		return
	}
	im.onProgress(Progress{
		RunID:      r.id,
		State:      r.state,
		Processed:  r.processed,
		Inserted:   r.inserted,
		Invalid:    r.invalid,
		Duplicates: r.duplicates,
		Batches:    r.batches,
	})
}

// begin：配置校验与运行锁；返回的 release 必须调用
func (im *Importer) begin(ctx context.Context) (*run, func(), error) {
	r := &run{id: uuid.NewString(), started: time.Now(), state: StateIdle}
	im.mu.Lock()
	if im.running {
		im.mu.Unlock()
		return r, func() {}, ErrRunInProgress
	}
	im.running = true
	im.state = StateIdle
	im.mu.Unlock()

	done := func() {
		im.mu.Lock()
		im.running = false
		im.mu.Unlock()
	}
	if err := im.cfg.Validate(); err != nil {
		im.transition(r, StateFailed)
		done()
		return r, func() {}, err
	}
	release, err := im.lock.Acquire(ctx, r.id)
	if err != nil {
		im.log.Error("import_lock_error", "run_id", r.id, "err", err)
		im.transition(r, StateFailed)
		done()
		return r, func() {}, err
	}
	im.log.Info("import_start", "run_id", r.id, "batch_size", im.cfg.BatchSize, "max_records", im.cfg.MaxRecords)
	return r, func() { release(); done() }, nil
}

// Import：从已就绪的记录流导入（跳过下载与解压阶段）
func (im *Importer) Import(ctx context.Context, src io.Reader) (Result, error) {
	r, release, err := im.begin(ctx)
	if err != nil {
		return r.result(), err
	}
	defer release()
	return im.importStream(ctx, r, src)
}

// Run：完整流程，先由 Source 获取并解压数据集，再流式导入
func (im *Importer) Run(ctx context.Context, src Source) (Result, error) {
	r, release, err := im.begin(ctx)
	if err != nil {
		return r.result(), err
	}
	defer release()

	im.transition(r, StateDownloading)
	path, err := src.Download(ctx)
	if err != nil {
		return im.fail(r, &SourceError{Stage: StateDownloading, Err: err})
	}
	im.transition(r, StateExtracting)
	rc, err := src.Extract(ctx, path)
	if err != nil {
		return im.fail(r, &SourceError{Stage: StateExtracting, Err: err})
	}
	defer rc.Close()
	return im.importStream(ctx, r, rc)
}

func (im *Importer) importStream(ctx context.Context, r *run, src io.Reader) (Result, error) {
	tx, err := im.store.BeginImport(ctx)
	if err != nil {
		return im.fail(r, im.storageError(r, "begin", err))
	}
	r.tx = tx
	r.buffer = make([]model.Postcode, 0, min(im.cfg.BatchSize, 4096))
	r.pending = make(map[string]struct{})
	im.transition(r, StateStreaming)

	if err := im.stream(ctx, r, src); err != nil {
		im.rollback(ctx, r)
		return im.fail(r, err)
	}
	if err := tx.Commit(ctx); err != nil {
		im.rollback(ctx, r)
		return im.fail(r, im.storageError(r, "commit", err))
	}
	metrics.ImportRowsTotal.WithLabelValues("inserted").Add(float64(r.inserted))
	metrics.ImportRunsTotal.WithLabelValues(string(StateCompleted)).Inc()
	im.transition(r, StateCompleted)
	res := r.result()
	im.log.Info("import_done",
		"run_id", r.id,
		"processed", r.processed,
		"inserted", r.inserted,
		"invalid", r.invalid,
		"duplicates", r.duplicates,
		"batches", r.batches,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (im *Importer) rollback(ctx context.Context, r *run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := r.tx.Rollback(ctx); err != nil {
		im.log.Warn("import_rollback_error", "run_id", r.id, "err", err)
	}
}

func (im *Importer) fail(r *run, err error) (Result, error) {
	metrics.ImportRunsTotal.WithLabelValues(string(StateFailed)).Inc()
	im.transition(r, StateFailed)
	im.log.Error("import_failed", "run_id", r.id, "processed", r.processed, "inserted", r.inserted, "err", err)
	return r.result(), err
}

func (im *Importer) storageError(r *run, op string, err error) error {
	return &StorageError{Op: op, Processed: r.processed, Inserted: r.inserted, Err: err}
}

// stream：逐行读取；格式错误与重复行计数后跳过，仅存储错误、读取错误与取消向上返回
// 约束：每个物理行单独解析，未闭合的引号只影响所在行
func (im *Importer) stream(ctx context.Context, r *run, src io.Reader) error {
	lr := newLineReader(src, im.cfg.Comma)
	var pe *csv.ParseError

	if im.cfg.SkipHeader {
		if _, err := lr.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if !errors.As(err, &pe) {
				return &SourceError{Stage: StateStreaming, Err: err}
			}
		}
	}

	im.transition(r, StateAccumulating)
	for im.cfg.MaxRecords <= 0 || r.processed < im.cfg.MaxRecords {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.As(err, &pe) {
				return &SourceError{Stage: StateStreaming, Err: err}
			}
			r.invalid++
			metrics.ImportRowsTotal.WithLabelValues("invalid").Inc()
			im.log.Debug("import_row_unparsable", "run_id", r.id, "line", pe.Line, "err", err)
		} else if err := im.admit(ctx, r, fields); err != nil {
			return err
		}
		r.processed++
		if r.processed%im.cfg.BatchSize == 0 {
			if err := im.flush(ctx, r); err != nil {
				return err
			}
		}
	}
	if len(r.buffer) > 0 {
		return im.flush(ctx, r)
	}
	return nil
}

// admit：校验通过后才做去重检查（先比对当前批次，再查事务内已有数据）
func (im *Importer) admit(ctx context.Context, r *run, fields []string) error {
	if len(fields) < im.cfg.minFields() {
		r.invalid++
		metrics.ImportRowsTotal.WithLabelValues("invalid").Inc()
		im.log.Debug("import_row_short", "run_id", r.id, "fields", len(fields))
		return nil
	}
	pc := strings.TrimSpace(fields[im.cfg.PostcodeColumn])
	la := strings.TrimSpace(fields[im.cfg.LatitudeColumn])
	lo := strings.TrimSpace(fields[im.cfg.LongitudeColumn])
	if err := validate.Check(pc, la, lo); err != nil {
		r.invalid++
		metrics.ImportRowsTotal.WithLabelValues("invalid").Inc()
		im.log.Debug("import_row_invalid", "run_id", r.id, "err", err)
		return nil
	}

	key := validate.NormalizePostcode(pc)
	if _, ok := r.pending[key]; ok {
		r.duplicates++
		metrics.ImportRowsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	exists, err := r.tx.Exists(ctx, key)
	if err != nil {
		return im.storageError(r, "exists", err)
	}
	if exists {
		r.duplicates++
		metrics.ImportRowsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	lat, _ := validate.ParseLatitude(la)
	lon, _ := validate.ParseLongitude(lo)
	r.buffer = append(r.buffer, model.Postcode{Postcode: key, Latitude: lat, Longitude: lon})
	r.pending[key] = struct{}{}
	return nil
}

// flush：写入当前批次并清空缓冲；缓冲为空时只发进度通知
func (im *Importer) flush(ctx context.Context, r *run) error {
	im.transition(r, StateFlushing)
	if n := len(r.buffer); n > 0 {
		var err error
		for attempt := 0; attempt <= im.cfg.FlushRetries; attempt++ {
			if err = r.tx.InsertBatch(ctx, r.buffer); err == nil {
				break
			}
			metrics.ImportFlushFailuresTotal.Inc()
			im.log.Warn("import_batch_error", "run_id", r.id, "attempt", attempt+1, "rows", n, "err", err)
			if ctx.Err() != nil {
				break
			}
		}
		if err != nil {
			return im.storageError(r, "insert_batch", err)
		}
		r.inserted += n
		r.batches++
		metrics.ImportBatchesTotal.Inc()
		r.buffer = make([]model.Postcode, 0, cap(r.buffer))
		clear(r.pending)
	}
	im.log.Info("import_progress", "run_id", r.id, "processed", r.processed, "inserted", r.inserted)
	im.transition(r, StateAccumulating)
	return nil
}
