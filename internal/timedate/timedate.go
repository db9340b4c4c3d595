package timedate

import (
	"context"
	"fmt"
	"log/slog"

	"tzupdated/internal/logger"

	"github.com/godbus/dbus/v5"
)

const (
	BusName    = "org.freedesktop.timedate1"
	objectPath = "/org/freedesktop/timedate1"
	setMethod  = BusName + ".SetTimezone"
)

// 文档注释：systemd-timedated 时区应用端
// 背景：对每个时区变化事件调用 SetTimezone(tz, interactive=false)；失败原样返回，由编排器包装为 SinkApplyError。
// 约束：不重试；polkit 拒绝（未授权）同样以错误返回。
type Sink struct {
	obj dbus.BusObject
	log *slog.Logger
}

func New(conn *dbus.Conn) *Sink {
	return &Sink{obj: conn.Object(BusName, objectPath), log: logger.For("timedate")}
}

func (s *Sink) SetTimezone(ctx context.Context, tz string) error {
	if call := s.obj.CallWithContext(ctx, setMethod, 0, tz, false); call.Err != nil {
		return fmt.Errorf("timedate1 SetTimezone: %w", call.Err)
	}
	s.log.Debug("timedate_set", "tz", tz)
	return nil
}

// LogSink 只记录不应用（SINK=log，容器或调试场景）
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) SetTimezone(ctx context.Context, tz string) error {
	l := s.Log
	if l == nil {
		l = logger.For("timedate")
	}
	l.Info("timezone_would_apply", "tz", tz)
	return nil
}
