// 程序入口：城市存储服务，读取配置、初始化依赖并启动 HTTP 服务；路由注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worldwise/internal/api"
	"worldwise/internal/cache"
	"worldwise/internal/config"
	"worldwise/internal/logger"
	"worldwise/internal/metrics"
	"worldwise/internal/middleware"
	"worldwise/internal/migrate"
	"worldwise/internal/position"
	"worldwise/internal/store"
	"worldwise/internal/utils"
)

func main() {
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.Server.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgres(ctx, cfg)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok")
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	rc := utils.OpenRedis(ctx, cfg)
	if rc != nil {
		defer rc.Close()
	}

	deps := api.Deps{Store: st, Cache: cache.New(rc, cfg.Server.CacheTTL), CacheTTL: cfg.Server.CacheTTL}
	// 背景：mmdb 缺失只影响 /position，不阻断启动
	if geo, err := position.OpenGeoIP(cfg.Client.GeoIPPath); err == nil {
		defer geo.Close()
		deps.Geo = geo
		l.Info("geoip_ready", "path", cfg.Client.GeoIPPath)
	} else {
		l.Warn("geoip_unavailable", "path", cfg.Client.GeoIPPath, "err", err)
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(deps)
	if cfg.Server.APIBase == "" {
		mux.Handle("/", apiMux)
	} else {
		mux.Handle(cfg.Server.APIBase+"/", http.StripPrefix(cfg.Server.APIBase, apiMux))
	}
	mux.Handle(cfg.Server.APIBase+"/metrics", metrics.Handler())

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(cfg.Server, handler)
	s := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Info("shutdown_begin")
		_ = s.Shutdown(sctx)
	}()

	if cfg.Server.TLSEnabled {
		if err := utils.EnsureSelfSignedCert(cfg.Server.TLSCertPath, cfg.Server.TLSKeyPath, "worldwise.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Server.Addr, "cert", cfg.Server.TLSCertPath)
		err = s.ListenAndServeTLS(cfg.Server.TLSCertPath, cfg.Server.TLSKeyPath)
	} else {
		l.Info("listening", "addr", cfg.Server.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
}
