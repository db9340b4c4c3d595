package resolver

import (
	"log/slog"
	"sort"
	"time"

	"tzupdated/internal/boundary"
	"tzupdated/internal/logger"
	"tzupdated/internal/metrics"
)

// Source 取值
const (
	SourceBoundary = "boundary"
)

// 文档注释：一次解析的完整结果
// 背景：Resolve 只返回时区名；状态接口与调试需要知道是否歧义、命中了哪些区域、结果来自边界数据还是兜底引擎。
type Resolution struct {
	Timezone  string   `json:"timezone"`
	Found     bool     `json:"found"`
	Ambiguous bool     `json:"ambiguous"`
	Matches   []string `json:"matches,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// 文档注释：时区解析器
// 背景：包装只读边界索引，完成候选预筛 → 精确包含判定 → 多候选裁决；空白区域（海洋、数据缺口）返回未命中。
// 约束：无 I/O、无可变状态，可被多个调用方并发调用。
// 裁决规则：多个不同时区同时包含该点时，面积最小的多边形胜出（更细的形状视为更具体的覆盖）；
// 面积相等按时区名字典序，再按多边形编号，保证结果可重复。
type Resolver struct {
	ix       *boundary.Index
	fallback Fallback
	log      *slog.Logger
}

type Option func(*Resolver)

// WithFallback 数据集未命中时查询的兜底引擎；nil 表示不兜底
func WithFallback(f Fallback) Option { return func(r *Resolver) { r.fallback = f } }

func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.log = l } }

func New(ix *boundary.Index, opts ...Option) *Resolver {
	r := &Resolver{ix: ix}
	for _, fn := range opts {
		fn(r)
	}
	if r.log == nil {
		r.log = logger.For("resolver")
	}
	return r
}

// Resolve 返回坐标所在时区；未命中返回 ("", false)
func (r *Resolver) Resolve(lat, lon float64) (string, bool) {
	res := r.Explain(lat, lon)
	return res.Timezone, res.Found
}

// Explain 与 Resolve 相同的计算，附带歧义与来源信息
func (r *Resolver) Explain(lat, lon float64) Resolution {
	t0 := time.Now()
	defer func() { metrics.ResolveDurationUs.Observe(float64(time.Since(t0).Microseconds())) }()

	pt := boundary.Point{Lat: lat, Lon: lon}
	if !pt.Valid() {
		metrics.ResolveTotal.WithLabelValues("invalid").Inc()
		r.log.Debug("resolve_invalid_point", "lat", lat, "lon", lon)
		return Resolution{}
	}
	cands := r.ix.Candidates(pt)
	metrics.ResolveCandidates.Observe(float64(len(cands)))

	op := pt.Orb()
	var hits []*boundary.Polygon
	for _, p := range cands {
		if containsPoint(op, p.Shape) {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return r.miss(lat, lon)
	}
	sort.SliceStable(hits, func(i, j int) bool { return less(hits[i], hits[j]) })

	out := Resolution{Timezone: hits[0].Region, Found: true, Source: SourceBoundary}
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.Region]; ok {
			continue
		}
		seen[h.Region] = struct{}{}
		out.Matches = append(out.Matches, h.Region)
	}
	if len(out.Matches) > 1 {
		out.Ambiguous = true
		metrics.ResolveTotal.WithLabelValues("ambiguous").Inc()
		r.log.Debug("resolve_ambiguous", "lat", lat, "lon", lon, "matches", out.Matches, "chosen", out.Timezone)
		return out
	}
	metrics.ResolveTotal.WithLabelValues("found").Inc()
	return out
}

func (r *Resolver) miss(lat, lon float64) Resolution {
	if r.fallback != nil {
		if tz := r.fallback.Lookup(lat, lon); tz != "" {
			metrics.ResolveTotal.WithLabelValues("fallback").Inc()
			r.log.Debug("resolve_fallback", "lat", lat, "lon", lon, "engine", r.fallback.Name(), "tz", tz)
			return Resolution{Timezone: tz, Found: true, Matches: []string{tz}, Source: r.fallback.Name()}
		}
	}
	metrics.ResolveTotal.WithLabelValues("unresolved").Inc()
	r.log.Debug("resolve_unresolved", "lat", lat, "lon", lon)
	return Resolution{}
}

func less(a, b *boundary.Polygon) bool {
	if a.Area != b.Area {
		return a.Area < b.Area
	}
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	return a.ID < b.ID
}

// Index 返回底层索引（状态接口使用）
func (r *Resolver) Index() *boundary.Index { return r.ix }
