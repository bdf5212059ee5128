// 包 migrate：设施数据表结构
package migrate

import (
	"context"
	"database/sql"

	"paman-dede/internal/logger"
)

// EnsureSchema：首次运行自动创建设施表与导入记录表
// 约束：使用 IF NOT EXISTS，可重复执行；坐标列可为空（无效坐标的设施仍保留）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _places (
            id SERIAL PRIMARY KEY,
            kode INT NOT NULL DEFAULT 0,
            keterangan TEXT NOT NULL,
            deskripsi TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL DEFAULT '',
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION
        )`,
		`CREATE INDEX IF NOT EXISTS idx_places_kode ON _places(kode)`,
		`CREATE TABLE IF NOT EXISTS _place_imports (
            id SERIAL PRIMARY KEY,
            source TEXT NOT NULL,
            row_count INT NOT NULL,
            imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
