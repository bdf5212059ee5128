package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"paman-dede/internal/backend"
	"paman-dede/internal/logger"
	"paman-dede/internal/migrate"
	"paman-dede/internal/store"
	"paman-dede/internal/utils"
)

// 设施数据导入：读取 xlsx/json，整表替换 _places（PLACE_SOURCE=postgres 时服务端读取）
// 用法：place-import [--env file.env] [path]；未给 path 时使用 PLACE_DATA_PATH
// 约束：整表替换在单个事务内完成，失败时保留旧数据
func main() {
	var envFile, path string
	for i := 1; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--env" && i+1 < len(os.Args):
			envFile = os.Args[i+1]
			i++
		case strings.HasSuffix(os.Args[i], ".env"):
			envFile = os.Args[i]
		default:
			path = os.Args[i]
		}
	}
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load(".env")
	}
	l := logger.Setup()
	if path == "" {
		path = os.Getenv("PLACE_DATA_PATH")
	}
	if path == "" {
		path = filepath.Join("data", "place-data.xlsx")
	}

	places, err := backend.PlaceFile{Path: path}.ReadPlaces(context.Background())
	if err != nil {
		l.Error("place_read_error", "path", path, "err", err)
		os.Exit(1)
	}
	invalid := 0
	for _, p := range places {
		if !p.HasCoords {
			invalid++
		}
	}
	l.Info("place_read_ok", "path", path, "rows", len(places), "invalid_coords", invalid)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)
	defer st.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	n, err := st.ReplacePlaces(ctx, filepath.Base(path), places)
	if err != nil {
		l.Error("place_import_error", "err", err)
		os.Exit(1)
	}
	l.Info("place_import_done", "rows", n, "source", filepath.Base(path))
}
