// 包 migrate：启动时幂等建表
package migrate

import (
	"context"
	"database/sql"

	"worldwise/internal/errs"
	"worldwise/internal/logger"
)

// Statements：按顺序执行的建表语句，全部使用 IF NOT EXISTS
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id BIGSERIAL PRIMARY KEY,
		city_name TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		emoji TEXT NOT NULL DEFAULT '',
		visited_at TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		lng DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cities_country ON cities(country)`,
}

// EnsureSchema：首次运行自动创建城市表；重复执行无副作用
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return errs.Wrap(errs.KindStorage, "migrate.EnsureSchema", "schema statement failed", err)
		}
	}
	logger.L().Debug("schema_done", "statements", len(Statements))
	return nil
}
