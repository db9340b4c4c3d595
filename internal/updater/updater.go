package updater

import (
	"log/slog"
	"sync"
	"time"

	"tzupdated/internal/logger"
	"tzupdated/internal/metrics"
)

// DefaultMinDistance 上游位置源在发出新坐标前应满足的最小移动距离（米）
const DefaultMinDistance = 1000.0

// Resolver 编排器只依赖的解析契约
type Resolver interface {
	Resolve(lat, lon float64) (string, bool)
}

// Event：时区变化事件
type Event struct {
	Timezone string    `json:"timezone"`
	Previous string    `json:"previous,omitempty"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	At       time.Time `json:"at"`
}

// 文档注释：时区更新编排器
// 背景：持有“当前时区”这一唯一可变状态；每个输入坐标调用解析器，仅当结果与当前值不同才发出变化事件。
// 约束：两种逻辑状态 Unknown / Known(tz)；未命中的点不会覆盖已知时区；不做定时重算，完全由输入坐标驱动。
// 约束：OnCoordinate 以互斥锁串行化，满足单写者规则；Deliver 另以 applyMu 把“判定+应用”整体串行，
// 多个输入（位置源循环、HTTP /fix）并发时，sink 收到的顺序与事件发出顺序一致。
type Orchestrator struct {
	applyMu sync.Mutex
	mu      sync.Mutex
	res     Resolver
	current string
	known   bool
	minDist float64
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Orchestrator)

// WithMinDistance 设置暴露给位置源的最小移动阈值（米）；非正数忽略
func WithMinDistance(m float64) Option {
	return func(o *Orchestrator) {
		if m > 0 {
			o.minDist = m
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func withClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func New(r Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{res: r, minDist: DefaultMinDistance, now: time.Now}
	for _, fn := range opts {
		fn(o)
	}
	if o.log == nil {
		o.log = logger.For("updater")
	}
	return o
}

// OnCoordinate 处理一个定位结果；返回的 bool 表示是否发生了时区变化
func (o *Orchestrator) OnCoordinate(lat, lon float64) (Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tz, ok := o.res.Resolve(lat, lon)
	if !ok {
		o.log.Info("timezone_unresolved", "lat", lat, "lon", lon, "current", o.current)
		return Event{}, false
	}
	if o.known && tz == o.current {
		return Event{}, false
	}
	ev := Event{Timezone: tz, Previous: o.current, Lat: lat, Lon: lon, At: o.now()}
	o.current = tz
	o.known = true
	metrics.ChangesTotal.Inc()
	o.log.Info("timezone_changed", "tz", tz, "previous", ev.Previous, "lat", lat, "lon", lon)
	return ev, true
}

// Current 返回当前时区；Unknown 时第二个返回值为 false
func (o *Orchestrator) Current() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.known
}

// MinDistance 位置源应采用的最小移动阈值（米）；编排器自身不按距离过滤
func (o *Orchestrator) MinDistance() float64 { return o.minDist }
