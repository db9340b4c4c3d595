package api

import (
	"context"
	"encoding/json"
	"time"

	"tzupdated/internal/logger"
	"tzupdated/internal/metrics"
	"tzupdated/internal/resolver"

	"github.com/redis/go-redis/v9"
)

// 文档注释：带 Redis 热点缓存的时区查询
// 背景：多实例共享查询结果；本地 LRU 未命中时先查 Redis，再回落到解析器。
// 约束：Redis 故障只降级不报错；键为精确坐标，缓存值为解析结果 JSON。
func TimezoneQuery(ctx context.Context, rc *redis.Client, res *resolver.Cached, lat, lon float64, ttl time.Duration) resolver.Resolution {
	key := "tz:" + resolver.CoordKey(lat, lon)
	if rc != nil {
		if s, err := rc.Get(ctx, key).Result(); err == nil && s != "" {
			var out resolver.Resolution
			if json.Unmarshal([]byte(s), &out) == nil {
				metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
				return out
			}
		} else if err != nil && err != redis.Nil {
			logger.L().Debug("redis_get_error", "key", key, "err", err)
		}
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
	}
	out := res.Explain(lat, lon)
	if rc != nil {
		if ttl <= 0 {
			ttl = time.Hour
		}
		b, _ := json.Marshal(out)
		if err := rc.Set(ctx, key, string(b), ttl).Err(); err != nil {
			logger.L().Debug("redis_set_error", "key", key, "err", err)
		}
	}
	return out
}
