package config

import (
	"errors"
	"testing"
	"time"
)

var keys = []string{
	"ADDR", "API_BASE", "RATE_LIMIT_ENABLED", "RATE_LIMIT_QPS", "IMPORT_ON_EMPTY",
	"TLS_ENABLE", "TLS_CERT_PATH", "TLS_KEY_PATH",
	"PG_DRIVER", "PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DB", "PG_SSLMODE",
	"PG_MAX_OPEN_CONNS", "PG_MAX_IDLE_CONNS", "DB_CONNECT_RETRIES",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASS", "REDIS_DB",
	"POSTCODE_DATA_URL", "POSTCODE_DATA_MEMBER", "POSTCODE_WORK_DIR",
	"IMPORT_BATCH_SIZE", "IMPORT_MAX_RECORDS", "IMPORT_FLUSH_RETRIES", "IMPORT_LOCK_TTL", "IMPORT_KEEP_FILES",
}

// clearEnv：空值视为未设置
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadServer_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer err: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.APIBase != "/api" {
		t.Errorf("addr/base = %q/%q", cfg.Addr, cfg.APIBase)
	}
	if cfg.Postgres.Driver != "pq" || cfg.Postgres.MaxOpenConns != 50 {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	if cfg.Redis.Enabled || cfg.ImportOnEmpty || cfg.RateLimitEnabled || cfg.TLSEnabled {
		t.Errorf("optional features should default off: %+v", cfg)
	}
	if cfg.Import.BatchSize != 1000 || cfg.Import.MaxRecords != 50 || cfg.Import.Member != DefaultMember {
		t.Errorf("import = %+v", cfg.Import)
	}
}

func TestLoadServer_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":9090")
	t.Setenv("API_BASE", "/v1/")
	t.Setenv("PG_DRIVER", "PGX")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("IMPORT_ON_EMPTY", "1")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer err: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.APIBase != "/v1" {
		t.Errorf("addr/base = %q/%q", cfg.Addr, cfg.APIBase)
	}
	if cfg.Postgres.Driver != "pgx" {
		t.Errorf("driver = %q", cfg.Postgres.Driver)
	}
	if got, want := cfg.Postgres.DSN(), "postgres://postgres:secret@db:5432/shoplocator?sslmode=disable"; got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	if !cfg.Redis.Enabled || cfg.Redis.DB != 2 || cfg.Redis.Addr() != "127.0.0.1:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if !cfg.ImportOnEmpty || cfg.Import.Postgres.Host != "db" {
		t.Errorf("import = %+v", cfg.Import)
	}
}

func TestLoadImport(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMPORT_BATCH_SIZE", "250")
	t.Setenv("IMPORT_MAX_RECORDS", "0")
	t.Setenv("IMPORT_LOCK_TTL", "5m")
	t.Setenv("POSTCODE_WORK_DIR", "/tmp/pc")

	cfg, err := LoadImport()
	if err != nil {
		t.Fatalf("LoadImport err: %v", err)
	}
	if cfg.BatchSize != 250 || cfg.MaxRecords != 0 || cfg.LockTTL != 5*time.Minute || cfg.WorkDir != "/tmp/pc" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DataURL != DefaultDataURL {
		t.Errorf("url = %q", cfg.DataURL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"batch_not_int", "IMPORT_BATCH_SIZE", "many"},
		{"batch_zero", "IMPORT_BATCH_SIZE", "0"},
		{"bad_driver", "PG_DRIVER", "mysql"},
		{"bad_bool", "IMPORT_KEEP_FILES", "maybe"},
		{"bad_ttl", "IMPORT_LOCK_TTL", "soon"},
		{"negative_retries", "IMPORT_FLUSH_RETRIES", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadImport()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if ce.Field != tt.key {
				t.Errorf("field = %q, want %q", ce.Field, tt.key)
			}
		})
	}
}

func TestLoadServer_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_QPS", "0")
	t.Setenv("API_BASE", "api")
	_, err := LoadServer()
	if err == nil {
		t.Fatal("expected error")
	}
	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ce *ConfigError
		if errors.As(e, &ce) {
			fields = append(fields, ce.Field)
		}
	}
	if len(fields) != 2 {
		t.Errorf("fields = %v", fields)
	}
}
