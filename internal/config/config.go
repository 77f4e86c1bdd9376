// 包 config：从环境变量读取服务与导入配置
// 约束：未设置时使用默认值；已设置但无法解析时返回 ConfigError，不静默回退
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDataURL = "https://parlvid.mysociety.org/os/ONSPD/2022-11.zip"
	DefaultMember  = "Data/multi_csv/ONSPD_NOV_2022_UK_AB.csv"
)

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Message)
}

// Postgres：连接参数；Driver 为 pq（database/sql）或 pgx（pgxpool）
type Postgres struct {
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	DB             string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectRetries int
}

// DSN：postgres:// URL 形式，lib/pq 与 pgx 均可解析
func (p Postgres) DSN() string {
	dsn := "postgres://" + p.User
	if p.Password != "" {
		dsn += ":" + p.Password
	}
	return dsn + "@" + p.Host + ":" + p.Port + "/" + p.DB + "?sslmode=" + p.SSLMode
}

type Redis struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func (r Redis) Addr() string { return r.Host + ":" + r.Port }

type Server struct {
	Addr             string
	APIBase          string
	RateLimitEnabled bool
	RateLimitQPS     int
	ImportOnEmpty    bool
	TLSEnabled       bool
	TLSCertPath      string
	TLSKeyPath       string
	Postgres         Postgres
	Redis            Redis
	Import           Import
}

// Import：导入任务参数
type Import struct {
	DataURL      string
	Member       string
	WorkDir      string
	BatchSize    int
	MaxRecords   int
	FlushRetries int
	LockTTL      time.Duration
	KeepFiles    bool
	Postgres     Postgres
	Redis        Redis
}

// env：逐项读取并累积解析错误
type env struct{ errs []error }

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) num(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, &ConfigError{Field: key, Message: "must be a valid integer"})
		return def
	}
	return n
}

func (e *env) flag(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, &ConfigError{Field: key, Message: "must be a boolean"})
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, &ConfigError{Field: key, Message: "must be a positive duration like 30m"})
		return def
	}
	return d
}

func (e *env) check(ok bool, key, msg string) {
	if !ok {
		e.errs = append(e.errs, &ConfigError{Field: key, Message: msg})
	}
}

func (e *env) postgres() Postgres {
	p := Postgres{
		Driver:         strings.ToLower(e.str("PG_DRIVER", "pq")),
		Host:           e.str("PG_HOST", "localhost"),
		Port:           e.str("PG_PORT", "5432"),
		User:           e.str("PG_USER", "postgres"),
		Password:       os.Getenv("PG_PASSWORD"),
		DB:             e.str("PG_DB", "shoplocator"),
		SSLMode:        e.str("PG_SSLMODE", "disable"),
		MaxOpenConns:   e.num("PG_MAX_OPEN_CONNS", 50),
		MaxIdleConns:   e.num("PG_MAX_IDLE_CONNS", 25),
		ConnectRetries: e.num("DB_CONNECT_RETRIES", 10),
	}
	e.check(p.Driver == "pq" || p.Driver == "pgx", "PG_DRIVER", "must be pq or pgx")
	e.check(p.MaxOpenConns > 0, "PG_MAX_OPEN_CONNS", "must be positive")
	e.check(p.ConnectRetries >= 0, "DB_CONNECT_RETRIES", "must not be negative")
	return p
}

func (e *env) redis() Redis {
	r := Redis{
		Enabled:  e.flag("REDIS_ENABLED", false),
		Host:     e.str("REDIS_HOST", "127.0.0.1"),
		Port:     e.str("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASS"),
		DB:       e.num("REDIS_DB", 0),
	}
	e.check(r.DB >= 0, "REDIS_DB", "must not be negative")
	return r
}

func (e *env) importer() Import {
	im := Import{
		DataURL:      e.str("POSTCODE_DATA_URL", DefaultDataURL),
		Member:       e.str("POSTCODE_DATA_MEMBER", DefaultMember),
		WorkDir:      e.str("POSTCODE_WORK_DIR", "data/postcodes"),
		BatchSize:    e.num("IMPORT_BATCH_SIZE", 1000),
		MaxRecords:   e.num("IMPORT_MAX_RECORDS", 50),
		FlushRetries: e.num("IMPORT_FLUSH_RETRIES", 0),
		LockTTL:      e.duration("IMPORT_LOCK_TTL", 30*time.Minute),
		KeepFiles:    e.flag("IMPORT_KEEP_FILES", false),
	}
	e.check(im.BatchSize > 0, "IMPORT_BATCH_SIZE", "must be a positive integer")
	e.check(im.FlushRetries >= 0, "IMPORT_FLUSH_RETRIES", "must not be negative")
	return im
}

// LoadImport：导入任务配置
func LoadImport() (*Import, error) {
	e := &env{}
	im := e.importer()
	im.Postgres = e.postgres()
	im.Redis = e.redis()
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return &im, nil
}

// LoadServer：HTTP 服务配置，含空表自动导入所需的导入参数
func LoadServer() (*Server, error) {
	e := &env{}
	s := &Server{
		Addr:             e.str("ADDR", ":8080"),
		APIBase:          strings.TrimRight(e.str("API_BASE", "/api"), "/"),
		RateLimitEnabled: e.flag("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:     e.num("RATE_LIMIT_QPS", 50),
		ImportOnEmpty:    e.flag("IMPORT_ON_EMPTY", false),
		TLSEnabled:       e.flag("TLS_ENABLE", false),
		TLSCertPath:      e.str("TLS_CERT_PATH", "data/certs/server.crt"),
		TLSKeyPath:       e.str("TLS_KEY_PATH", "data/certs/server.key"),
		Postgres:         e.postgres(),
		Redis:            e.redis(),
	}
	s.Import = e.importer()
	s.Import.Postgres, s.Import.Redis = s.Postgres, s.Redis
	e.check(s.RateLimitQPS > 0, "RATE_LIMIT_QPS", "must be positive")
	e.check(s.APIBase == "" || strings.HasPrefix(s.APIBase, "/"), "API_BASE", "must start with /")
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return s, nil
}
