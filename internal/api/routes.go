// 包 api：集中注册 HTTP API 路由以解耦主入口
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"tzupdated/internal/logger"
	"tzupdated/internal/metrics"
	"tzupdated/internal/middleware"
	"tzupdated/internal/resolver"
	"tzupdated/internal/updater"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Deps 路由依赖；Redis/Sink 可为空
type Deps struct {
	Resolver     *resolver.Cached
	Orchestrator *updater.Orchestrator
	Sink         updater.Sink
	Redis        *redis.Client
	RedisTTL     time.Duration
	AdminToken   string
	RateLimitQPS int
}

// 构建并返回 API 路由：独立 chi.Router 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.AccessMiddleware(logger.For("http")))
	r.With(middleware.RateLimit(d.RateLimitQPS)).Get("/timezone", d.handleTimezone)
	r.Get("/current", d.handleCurrent)
	r.Get("/regions", d.handleRegions)
	r.Post("/fix", d.handleFix)
	r.Handle("/metrics", metrics.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCoord(r *http.Request) (float64, float64, bool) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	return lat, lon, err1 == nil && err2 == nil
}

func (d Deps) handleTimezone(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("timezone").Inc()
	lat, lon, ok := parseCoord(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResult{Error: "lat and lon must be numbers"})
		return
	}
	res := TimezoneQuery(r.Context(), d.Redis, d.Resolver, lat, lon, d.RedisTTL)
	writeJSON(w, http.StatusOK, timezoneResult{
		Lat:       lat,
		Lon:       lon,
		Timezone:  res.Timezone,
		Found:     res.Found,
		Ambiguous: res.Ambiguous,
		Matches:   res.Matches,
		Source:    res.Source,
	})
}

func (d Deps) handleCurrent(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("current").Inc()
	tz, known := d.Orchestrator.Current()
	writeJSON(w, http.StatusOK, currentResult{Timezone: tz, Known: known, MinDistance: d.Orchestrator.MinDistance()})
}

func (d Deps) handleRegions(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("regions").Inc()
	ix := d.Resolver.Resolver().Index()
	names := ix.Regions()
	writeJSON(w, http.StatusOK, regionsResult{Count: len(names), Polygons: ix.Len(), BuiltAt: ix.BuiltAt(), Regions: names})
}

// 文档注释：手动上报定位
// 背景：无定位服务的环境下由外部系统推送坐标；与其它位置源共用同一编排器，保持单一“当前时区”。
// 约束：需要 x-admin-token；未配置 ADMIN_TOKEN 时接口关闭。
func (d Deps) handleFix(w http.ResponseWriter, r *http.Request) {
	metrics.APIRequestsTotal.WithLabelValues("fix").Inc()
	t := r.Header.Get("x-admin-token")
	if d.AdminToken == "" || subtle.ConstantTimeCompare([]byte(t), []byte(d.AdminToken)) != 1 {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	var req fixRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResult{Error: "bad json"})
		return
	}
	fx := updater.Fix{Lat: req.Lat, Lon: req.Lon, Accuracy: req.Accuracy, Provider: "http", At: time.Now()}
	ev, changed, err := d.Orchestrator.Deliver(r.Context(), fx, d.Sink)
	out := fixResult{Changed: changed}
	out.Timezone, _ = d.Orchestrator.Current()
	if changed {
		out.Previous = ev.Previous
	}
	if err != nil {
		logger.L().Error("sink_apply_error", "err", err)
		out.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}
