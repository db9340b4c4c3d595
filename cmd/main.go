// 程序入口：仅负责读取配置、加载边界数据、装配位置源/编排器/时区应用端并启动；业务在 internal 下
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tzupdated/internal/api"
	"tzupdated/internal/boundary"
	"tzupdated/internal/config"
	"tzupdated/internal/geoclue"
	"tzupdated/internal/geoip"
	"tzupdated/internal/logger"
	"tzupdated/internal/middleware"
	"tzupdated/internal/migrate"
	"tzupdated/internal/resolver"
	"tzupdated/internal/store"
	"tzupdated/internal/timedate"
	"tzupdated/internal/updater"
	"tzupdated/internal/utils"

	"github.com/godbus/dbus/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 边界数据：加载失败对启动是致命的
	src, srcName, closeSrc, err := openBoundarySource(cfg)
	if err != nil {
		l.Error("boundary_source_error", "err", err)
		os.Exit(1)
	}
	ix, err := boundary.Load(ctx, src, boundary.WithSimpleRings(cfg.ValidateSimple), boundary.WithSourceName(srcName))
	closeSrc()
	if err != nil {
		l.Error("dataset_error", "source", srcName, "err", err)
		os.Exit(1)
	}

	fb, err := resolver.NewFallback(cfg.Fallback)
	if err != nil {
		l.Error("fallback_error", "err", err)
		os.Exit(1)
	}
	res := resolver.New(ix, resolver.WithFallback(fb))
	orch := updater.New(res, updater.WithMinDistance(cfg.MinDistance))
	l.Info("resolver_ready", "regions", len(ix.Regions()), "polygons", ix.Len(), "fallback", cfg.Fallback, "min_distance_m", orch.MinDistance())

	var bus *dbus.Conn
	systemBus := func() (*dbus.Conn, error) {
		if bus != nil {
			return bus, nil
		}
		c, err := dbus.SystemBus()
		if err != nil {
			return nil, err
		}
		bus = c
		return bus, nil
	}

	var sink updater.Sink = timedate.LogSink{Log: logger.For("timedate")}
	if cfg.Sink == "timedate" {
		conn, err := systemBus()
		if err != nil {
			l.Error("system_bus_error", "err", err)
			os.Exit(1)
		}
		sink = timedate.New(conn)
	}

	fixes, release, err := openLocationSource(ctx, cfg, orch, systemBus)
	if err != nil {
		l.Error("location_source_error", "provider", cfg.LocationProvider, "err", err)
		os.Exit(1)
	}
	defer release()
	l.Info("location_source_ready", "provider", cfg.LocationProvider)

	var srv *http.Server
	if cfg.Addr != "" {
		srv = startHTTP(cfg, res, orch, sink)
	}

	if err := orch.Run(ctx, fixes, sink); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("run_error", "err", err)
	}
	l.Info("shutdown")
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}
}

func openBoundarySource(cfg config.Config) (boundary.Source, string, func(), error) {
	if cfg.BoundarySource == "postgres" {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, "", nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, "", nil, err
		}
		if err := migrate.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, "", nil, err
		}
		logger.L().Info("db_open_ok")
		return store.AttachDB(db).BoundarySource(cfg.BoundaryTag), "postgres", func() { _ = db.Close() }, nil
	}
	return boundary.LoadFile(cfg.BoundaryPath, cfg.BoundaryNameKey), cfg.BoundaryPath, func() {}, nil
}

// 文档注释：打开位置源
// 背景：订阅式获取（GeoClue2 Start/Stop）与轮询式获取（GeoIP）统一为 Fix 通道；release 在退出时保证释放订阅。
// 约束：最小移动阈值取自编排器，GeoClue2 由服务端执行，GeoIP 由轮询端自行执行。
func openLocationSource(ctx context.Context, cfg config.Config, orch *updater.Orchestrator, systemBus func() (*dbus.Conn, error)) (<-chan updater.Fix, func(), error) {
	switch cfg.LocationProvider {
	case "geoclue":
		conn, err := systemBus()
		if err != nil {
			return nil, nil, err
		}
		c, err := geoclue.New(ctx, conn, geoclue.Options{
			DesktopID:         cfg.DesktopID,
			DistanceThreshold: orch.MinDistance(),
			Accuracy:          geoclue.AccuracyCity,
		})
		if err != nil {
			return nil, nil, err
		}
		fixes, err := c.Start(ctx)
		if err != nil {
			return nil, nil, err
		}
		return fixes, func() {
			if err := c.Stop(); err != nil && !errors.Is(err, geoclue.ErrNotRunning) {
				logger.L().Warn("geoclue_stop_error", "err", err)
			}
		}, nil
	case "geoip":
		s, err := geoip.Open(cfg.GeoIPPath, cfg.GeoIPAddr, cfg.GeoIPInterval, orch.MinDistance())
		if err != nil {
			return nil, nil, err
		}
		return s.Start(ctx), func() { _ = s.Close() }, nil
	case "static":
		ch := make(chan updater.Fix, 1)
		ch <- updater.Fix{Lat: cfg.StaticLat, Lon: cfg.StaticLon, Provider: "static", At: time.Now()}
		return ch, func() {}, nil
	}
	// none：仅通过 HTTP /fix 推送
	return nil, func() {}, nil
}

func startHTTP(cfg config.Config, res *resolver.Resolver, orch *updater.Orchestrator, sink updater.Sink) *http.Server {
	l := logger.L()
	var rc *redis.Client
	if cfg.RedisEnable {
		rc = utils.OpenRedisFromEnv()
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	} else {
		l.Info("redis_disabled")
	}
	apiHandler := api.BuildRoutes(api.Deps{
		Resolver:     resolver.NewCached(res, cfg.CacheSize, cfg.CacheTTL),
		Orchestrator: orch,
		Sink:         sink,
		Redis:        rc,
		RedisTTL:     cfg.RedisCacheTTL,
		AdminToken:   cfg.AdminToken,
		RateLimitQPS: cfg.RateLimitQPS,
	})
	base := strings.TrimSuffix(cfg.APIBase, "/")
	mux := http.NewServeMux()
	allow := middleware.NewAllowlist(cfg.APIAllow, logger.For("http"))
	mux.Handle(base+"/", allow.Wrap(http.StripPrefix(base, apiHandler)))
	s := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		l.Info("listening", "addr", cfg.Addr, "base", base)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http_error", "err", err)
		}
	}()
	return s
}
