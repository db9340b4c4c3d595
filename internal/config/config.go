package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 文档注释：守护进程配置
// 背景：全部来自环境变量（main 中先由 godotenv 载入 .env）；缺省值保证在桌面环境直接可用。
// 约束：Load 只做解析与枚举校验，不打开任何文件或连接。
type Config struct {
	BoundarySource   string // file | postgres
	BoundaryPath     string
	BoundaryNameKey  string
	BoundaryTag      string
	ValidateSimple   bool
	Fallback         string
	CacheSize        int
	CacheTTL         time.Duration
	MinDistance      float64
	LocationProvider string // geoclue | geoip | static | none
	DesktopID        string
	GeoIPPath        string
	GeoIPAddr        string
	GeoIPInterval    time.Duration
	StaticLat        float64
	StaticLon        float64
	Sink             string // timedate | log
	Addr             string
	APIBase          string
	AdminToken       string
	APIAllow         string // 逗号分隔的 IP/CIDR，空表示不限制
	RateLimitQPS     int
	RedisEnable      bool
	RedisCacheTTL    time.Duration
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvSeconds(key string, def int) time.Duration {
	return time.Duration(getenvInt(key, def)) * time.Second
}

func Load() (Config, error) {
	cfg := Config{
		BoundarySource:   strings.ToLower(getenv("BOUNDARY_SOURCE", "file")),
		BoundaryPath:     getenv("BOUNDARY_PATH", filepath.Join("data", "boundaries", "combined.json")),
		BoundaryNameKey:  getenv("BOUNDARY_NAME_KEY", "tzid"),
		BoundaryTag:      getenv("BOUNDARY_SOURCE_TAG", ""),
		ValidateSimple:   getenvBool("BOUNDARY_VALIDATE_SIMPLE", false),
		Fallback:         getenv("RESOLVER_FALLBACK", ""),
		CacheSize:        getenvInt("RESOLVER_CACHE_SIZE", 4096),
		CacheTTL:         getenvSeconds("RESOLVER_CACHE_TTL_S", 3600),
		MinDistance:      getenvFloat("UPDATER_MIN_DISTANCE_M", 1000),
		LocationProvider: strings.ToLower(getenv("LOCATION_PROVIDER", "geoclue")),
		DesktopID:        getenv("GEOCLUE_DESKTOP_ID", "tzupdated"),
		GeoIPPath:        getenv("GEOIP_PATH", filepath.Join("data", "geoip", "GeoLite2-City.mmdb")),
		GeoIPAddr:        getenv("GEOIP_ADDR", ""),
		GeoIPInterval:    getenvSeconds("GEOIP_INTERVAL_S", 900),
		StaticLat:        getenvFloat("LOCATION_STATIC_LAT", 0),
		StaticLon:        getenvFloat("LOCATION_STATIC_LON", 0),
		Sink:             strings.ToLower(getenv("SINK", "timedate")),
		Addr:             getenv("ADDR", ""),
		APIBase:          getenv("API_BASE", "/api"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		RateLimitQPS:     getenvInt("RATE_LIMIT_QPS", 0),
		RedisEnable:      getenvBool("REDIS_ENABLE", false),
		RedisCacheTTL:    getenvSeconds("REDIS_CACHE_TTL_S", 3600),
	}
	// 显式设为空串表示不限制来源，故不走 getenv 的默认值回退
	cfg.APIAllow = "127.0.0.1,::1"
	if v, ok := os.LookupEnv("API_ALLOW"); ok {
		cfg.APIAllow = v
	}
	switch cfg.BoundarySource {
	case "file", "postgres":
	default:
		return cfg, fmt.Errorf("BOUNDARY_SOURCE %q: want file or postgres", cfg.BoundarySource)
	}
	switch cfg.LocationProvider {
	case "geoclue", "geoip", "static", "none":
	default:
		return cfg, fmt.Errorf("LOCATION_PROVIDER %q: want geoclue, geoip, static or none", cfg.LocationProvider)
	}
	switch cfg.Sink {
	case "timedate", "log":
	default:
		return cfg, fmt.Errorf("SINK %q: want timedate or log", cfg.Sink)
	}
	if cfg.LocationProvider == "geoip" && cfg.GeoIPAddr == "" {
		return cfg, fmt.Errorf("GEOIP_ADDR not set")
	}
	if cfg.MinDistance <= 0 {
		cfg.MinDistance = 1000
	}
	return cfg, nil
}
