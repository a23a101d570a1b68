// 包 utils：城市存储服务的连接工具（Postgres、Redis、TLS 证书）
package utils

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"worldwise/internal/config"
	"worldwise/internal/errs"
	"worldwise/internal/logger"
)

// OpenPostgres：按配置打开连接池并做一次带超时的 Ping
// 约束：sql.Open 不建立连接，Ping 失败时关闭连接池并返回 KindStorage
func OpenPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "utils.OpenPostgres", "could not open database", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindStorage, "utils.OpenPostgres", "database is unreachable", err)
	}
	logger.L().Debug("db_open_ok", "host", cfg.Postgres.Host, "db", cfg.Postgres.DB,
		"max_open", cfg.Postgres.MaxOpenConns, "max_idle", cfg.Postgres.MaxIdleConns)
	return db, nil
}
