// 邮编导入工具：拉取 ONSPD 数据集并分批写入 PostgreSQL 参考表
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shop-locator/internal/config"
	"shop-locator/internal/ingest"
	"shop-locator/internal/logger"
	"shop-locator/internal/store"
	"shop-locator/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	cfg, err := config.LoadImport()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	batchSize := flag.Int("batchSize", cfg.BatchSize, "rows per flush")
	maxRecords := flag.Int("maxRecords", cfg.MaxRecords, "stop after this many data rows (0 = no limit)")
	file := flag.String("file", "", "import an already extracted CSV instead of downloading the archive")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeDB, err := store.Open(ctx, cfg.Postgres)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer closeDB()
	if err := st.EnsureSchema(ctx); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	icfg := ingest.DefaultConfig()
	icfg.BatchSize = *batchSize
	icfg.MaxRecords = *maxRecords
	icfg.FlushRetries = cfg.FlushRetries

	opts := []ingest.Option{ingest.WithProgress(func(p ingest.Progress) {
		if p.State == ingest.StateFlushing {
			l.Debug("import_flush", "run_id", p.RunID, "processed", p.Processed, "inserted", p.Inserted)
		}
	})}
	if rc := utils.OpenRedis(ctx, cfg.Redis); rc != nil {
		defer rc.Close()
		opts = append(opts, ingest.WithLock(ingest.NewRedisLock(rc, cfg.LockTTL)))
	}
	im := ingest.NewImporter(st, icfg, opts...)

	var src ingest.Source = &ingest.HTTPSource{
		URL:       cfg.DataURL,
		Member:    cfg.Member,
		WorkDir:   cfg.WorkDir,
		Client:    &http.Client{Timeout: 10 * time.Minute},
		KeepFiles: cfg.KeepFiles,
	}
	if *file != "" {
		src = ingest.FileSource{Path: *file}
	}

	res, err := im.Run(ctx, src)
	if err != nil {
		l.Error("import_error", "run_id", res.RunID, "state", string(res.State), "err", err)
		os.Exit(1)
	}
	l.Info("import_success",
		"run_id", res.RunID,
		"processed", res.Processed,
		"inserted", res.Inserted,
		"invalid", res.Invalid,
		"duplicates", res.Duplicates,
		"duration", res.Duration.String(),
	)
}
