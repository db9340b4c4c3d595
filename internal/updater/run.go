package updater

import (
	"context"
	"fmt"
	"math"
	"time"

	"tzupdated/internal/metrics"
)

// Fix：位置源送来的一次定位
type Fix struct {
	Lat      float64
	Lon      float64
	Accuracy float64 // 米，未知为 0
	Provider string
	At       time.Time
}

// Sink：把时区应用到运行环境（如 systemd-timedated）
type Sink interface {
	SetTimezone(ctx context.Context, tz string) error
}

// SinkFunc 适配普通函数
type SinkFunc func(ctx context.Context, tz string) error

func (f SinkFunc) SetTimezone(ctx context.Context, tz string) error { return f(ctx, tz) }

// 文档注释：时区应用失败
// 背景：外部服务失败（权限、服务不可用）与核心无关；事件已经发出，状态已推进。
// 约束：核心不自动重试；由外围系统记录并在下一次解析出不同时区时再尝试。
type SinkApplyError struct {
	Timezone string
	Err      error
}

func (e *SinkApplyError) Error() string {
	return fmt.Sprintf("apply timezone %q: %v", e.Timezone, e.Err)
}

func (e *SinkApplyError) Unwrap() error { return e.Err }

// 文档注释：驱动循环
// 背景：守护进程用它把位置源的坐标流接到编排器与时区应用端；单一事件源，天然串行。
// 返回：fixes 关闭时返回 nil；ctx 取消时返回 ctx.Err()。sink 失败仅记录与计数，不中断循环。
func (o *Orchestrator) Run(ctx context.Context, fixes <-chan Fix, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fx, ok := <-fixes:
			if !ok {
				return nil
			}
			if _, _, err := o.Deliver(ctx, fx, sink); err != nil {
				o.log.Error("sink_apply_error", "err", err)
			}
		}
	}
}

// Deliver 处理单个定位：交给 OnCoordinate，若时区变化且 sink 非空则应用。
// 返回的错误只可能是 *SinkApplyError；此时事件已发出。
// sink 调用期间持有 applyMu，后到的 Deliver 等待前一个应用完成。
func (o *Orchestrator) Deliver(ctx context.Context, fx Fix, sink Sink) (Event, bool, error) {
	if fx.Provider == "" {
		fx.Provider = "unknown"
	}
	metrics.FixesTotal.WithLabelValues(fx.Provider).Inc()
	o.log.Debug("fix_received", "lat", fx.Lat, "lon", fx.Lon, "accuracy_m", fx.Accuracy, "provider", fx.Provider)
	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	ev, changed := o.OnCoordinate(fx.Lat, fx.Lon)
	if !changed || sink == nil {
		return ev, changed, nil
	}
	return ev, true, o.apply(ctx, sink, ev)
}

func (o *Orchestrator) apply(ctx context.Context, sink Sink, ev Event) error {
	if err := sink.SetTimezone(ctx, ev.Timezone); err != nil {
		metrics.SinkApplyTotal.WithLabelValues("fail").Inc()
		return &SinkApplyError{Timezone: ev.Timezone, Err: err}
	}
	metrics.SinkApplyTotal.WithLabelValues("ok").Inc()
	o.log.Info("sink_apply_ok", "tz", ev.Timezone)
	return nil
}

// Moved：两次定位之间的球面距离是否达到阈值（米）；供自行轮询的位置源使用
func Moved(a, b Fix, meters float64) bool {
	return haversine(a.Lat, a.Lon, b.Lat, b.Lon)*1000 >= meters
}

// 球面距离（Haversine），返回千米
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return R * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
