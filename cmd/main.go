// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"paman-dede/internal/api"
	"paman-dede/internal/backend"
	"paman-dede/internal/config"
	"paman-dede/internal/logger"
	"paman-dede/internal/metrics"
	"paman-dede/internal/middleware"
	"paman-dede/internal/migrate"
	"paman-dede/internal/store"
	"paman-dede/internal/utils"
	"paman-dede/internal/version"
	"paman-dede/internal/view"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Info("starting", "version", version.Version, "commit", version.Commit)

	cfg := config.Load()
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_public_dir", "dir", cfg.PublicDir)
	if _, err := cfg.MapConfig(); err != nil {
		// 约束：配置错误只让 /config 返回 500，进程照常启动
		l.Warn("map_config_invalid", "err", err)
	}

	villages, err := config.LoadVillageTable(cfg.VillagesFile)
	if err != nil {
		l.Error("village_table_error", "file", cfg.VillagesFile, "err", err)
		os.Exit(1)
	}
	l.Info("village_table_ok", "villages", villages.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	places, closeDB := placeSource(ctx, cfg, l)
	defer closeDB()

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}
	if cfg.SheetURL == "" {
		l.Warn("sheet_url_missing")
	}

	local := &backend.Local{
		Cfg:    cfg,
		Sheet:  backend.NewSheetProxy(cfg.SheetURL, cfg.SheetTimeout, cfg.SheetCacheTTL, rc),
		Places: places,
		Geo:    backend.GeoDir{Dir: cfg.GeoJSONDir},
	}
	session := view.NewSession(local, view.Options{
		FlashTTL:            cfg.FlashTTL,
		BoundaryConcurrency: cfg.BoundaryConcurrency,
		Villages:            villages,
		NumberedBoundaries:  cfg.BoundaryNumbered,
	})
	l.Info("session_created", "session", session.ID)

	// 会话初始化放在后台，静态页面与数据接口不必等待
	go func() {
		if err := session.Init(ctx); err != nil {
			l.Error("session_init_error", "err", err)
		}
		if cfg.RefreshInterval > 0 {
			session.Run(ctx, cfg.RefreshInterval)
		}
	}()

	if cfg.BoundaryWatch {
		go func() {
			err := backend.WatchBoundaries(ctx, cfg.GeoJSONDir, func(c backend.BoundaryChange) {
				if c.Removed {
					session.ForgetBoundary(c.ID)
					return
				}
				if err := session.ReloadBoundary(ctx, c.ID); err != nil {
					l.Warn("boundary_reload_error", "id", c.ID, "err", err)
				}
			})
			if err != nil {
				l.Error("boundary_watch_error", "dir", cfg.GeoJSONDir, "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(api.Deps{
		Source:   local,
		Session:  session,
		Villages: villages,
		Admin:    middleware.NewAdminGuard(cfg.AdminToken, cfg.AdminAllow, logger.For("admin")),
	})
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.PublicDir)))

	// NOTE: 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	handler := middleware.Chain(mux,
		middleware.Recovery(l),
		logger.AccessMiddleware(l),
		middleware.SecurityHeaders(cfg.CSPConnectSrc),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(cfg.RateLimitEnabled, cfg.RateLimitQPS),
	)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "paman-dede.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		// 可选：启动HTTP重定向到HTTPS（不改变HTTPS运行端口）
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			go serveRedirect(l, cfg.Addr)
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

// placeSource：PLACE_SOURCE=postgres 时读数据库，否则读 PLACE_DATA_PATH
func placeSource(ctx context.Context, cfg *config.Config, l *slog.Logger) (backend.PlaceReader, func()) {
	if cfg.PlaceSource != "postgres" {
		l.Info("place_source", "kind", "file", "path", cfg.PlaceDataPath)
		return backend.PlaceFile{Path: cfg.PlaceDataPath}, func() {}
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	l.Info("db_open_ok")
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)
	if at, n, err := st.LastImport(ctx); err == nil {
		l.Info("place_source", "kind", "postgres", "last_import", at, "rows", n)
	} else {
		l.Warn("place_import_missing", "err", err)
	}
	return backend.PlaceDB{Store: st}, func() { _ = st.Close() }
}

// serveRedirect：HTTP -> HTTPS，目标端口替换为 HTTPS 服务端口
func serveRedirect(l *slog.Logger, addr string) {
	redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
	if redirAddr == "" {
		redirAddr = ":80"
	}
	httpsPort := strings.TrimPrefix(addr, ":")
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		if httpsPort != "" {
			host = host + ":" + httpsPort
		}
		target := "https://" + host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		l.Debug("http_redirect", "from", r.Host, "to", target)
	})
	l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+addr)
	if err := http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(h)); err != nil {
		l.Error("http_redirect_error", "err", err)
	}
}
