package utils

import (
	"database/sql"
	"net"
	"net/url"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// BuildPostgresDSNFromEnv：PG_DSN 优先；否则由 PG_HOST/PG_PORT/PG_USER/PG_PASSWORD/PG_DB/PG_SSLMODE 拼装，
// 用户名与口令经 URL 转义，含特殊字符时依旧可用
func BuildPostgresDSNFromEnv() string {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(envOr("PG_HOST", "localhost"), envOr("PG_PORT", "5432")),
		Path:     "/" + envOr("PG_DB", "tzupdated"),
		RawQuery: url.Values{"sslmode": {envOr("PG_SSLMODE", "disable")}}.Encode(),
	}
	user := envOr("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// OpenPostgresFromEnv：边界数据只在启动或导入时读取，连接池默认很小（PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 可调）
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(envInt("PG_MAX_OPEN_CONNS", 4))
	db.SetMaxIdleConns(envInt("PG_MAX_IDLE_CONNS", 1))
	return db, nil
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n >= 0 {
		return n
	}
	return def
}
