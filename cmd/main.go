// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shop-locator/internal/api"
	"shop-locator/internal/config"
	"shop-locator/internal/ingest"
	"shop-locator/internal/logger"
	"shop-locator/internal/metrics"
	"shop-locator/internal/middleware"
	"shop-locator/internal/service"
	"shop-locator/internal/store"
	"shop-locator/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.LoadServer()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)

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

	rc := utils.OpenRedis(ctx, cfg.Redis)
	if rc != nil {
		defer rc.Close()
	}

	// 背景：空库时后台执行一次导入，不阻塞服务启动
	if cfg.ImportOnEmpty {
		icfg := ingest.DefaultConfig()
		icfg.BatchSize = cfg.Import.BatchSize
		icfg.MaxRecords = cfg.Import.MaxRecords
		icfg.FlushRetries = cfg.Import.FlushRetries
		var opts []ingest.Option
		if rc != nil {
			opts = append(opts, ingest.WithLock(ingest.NewRedisLock(rc, cfg.Import.LockTTL)))
		}
		im := ingest.NewImporter(st, icfg, opts...)
		src := &ingest.HTTPSource{
			URL:       cfg.Import.DataURL,
			Member:    cfg.Import.Member,
			WorkDir:   cfg.Import.WorkDir,
			Client:    &http.Client{Timeout: 10 * time.Minute},
			KeepFiles: cfg.Import.KeepFiles,
		}
		go func() {
			res, ran, err := ingest.EnsureInitialized(ctx, st, im, src)
			switch {
			case errors.Is(err, ingest.ErrRunInProgress):
				l.Info("import_on_empty_skipped", "reason", "run_in_progress")
			case err != nil:
				l.Error("import_on_empty_error", "err", err)
			case ran:
				l.Info("import_on_empty_done", "inserted", res.Inserted, "processed", res.Processed)
			}
		}()
	}

	svc := service.NewShopService(st, st)
	mux := http.NewServeMux()
	// 文档注释：构建路由并挂载到 API_BASE 前缀
	apiMux := api.BuildRoutes(svc)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	route := api.RouteLabel(apiMux, cfg.APIBase)
	handler := logger.AccessMiddleware(l, func(r *http.Request, status int, _ time.Duration) {
		metrics.HTTPRequestsTotal.WithLabelValues(route(r), strconv.Itoa(status)).Inc()
	})(mux)
	if cfg.RateLimitEnabled {
		handler = middleware.RateLimit(cfg.RateLimitQPS)(handler)
	}
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if cfg.TLSEnabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "shop-locator.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		err = s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}
