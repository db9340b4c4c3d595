package main

import (
	"context"
	"os"
	"time"

	"tzupdated/internal/boundary"
	"tzupdated/internal/logger"
	"tzupdated/internal/migrate"
	"tzupdated/internal/store"
	"tzupdated/internal/utils"

	"github.com/joho/godotenv"
)

// 文档注释：把 GeoJSON 边界导入 PostgreSQL
// 背景：多实例部署时以数据库分发同一份边界；导入前先在内存中完整校验，非法数据不会写库。
// 约束：按 BOUNDARY_SOURCE_TAG 整体替换（默认取文件名）；用法：tz-import <combined.json|.zip>
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if len(os.Args) < 2 {
		l.Error("usage", "want", "tz-import <file>")
		os.Exit(2)
	}
	path := os.Args[1]
	tag := os.Getenv("BOUNDARY_SOURCE_TAG")
	if tag == "" {
		tag = path
	}
	nameKey := os.Getenv("BOUNDARY_NAME_KEY")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	features, err := boundary.LoadFile(path, nameKey).Features(ctx)
	if err != nil {
		l.Error("dataset_read_error", "path", path, "err", err)
		os.Exit(1)
	}
	ix, err := boundary.Build(features, boundary.WithSimpleRings(os.Getenv("BOUNDARY_VALIDATE_SIMPLE") == "true"), boundary.WithSourceName(path))
	if err != nil {
		l.Error("dataset_invalid", "path", path, "err", err)
		os.Exit(1)
	}
	l.Info("dataset_valid", "regions", len(ix.Regions()), "polygons", ix.Len())

	st, err := store.Open(utils.BuildPostgresDSNFromEnv())
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.DB().PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(st.DB()); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	n, err := st.ImportFeatures(ctx, features, tag)
	if err != nil {
		l.Error("import_error", "err", err, "rows", n)
		os.Exit(1)
	}
	l.Info("import_ok", "tag", tag, "rows", n)
}
