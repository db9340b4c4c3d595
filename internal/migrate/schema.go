package migrate

import (
	"database/sql"

	"tzupdated/internal/logger"
)

// 背景：首次运行自动创建边界表与索引，保障导入与加载
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；几何以 GeoJSON 文本存储，不依赖 PostGIS
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _tz_boundaries (
			id SERIAL PRIMARY KEY,
			tzid TEXT NOT NULL,
			geometry TEXT NOT NULL,
			source_tag TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tz_boundaries_tag ON _tz_boundaries(source_tag, id)`,
		`CREATE INDEX IF NOT EXISTS idx_tz_boundaries_tzid ON _tz_boundaries(tzid)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
