package geoip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"tzupdated/internal/logger"
	"tzupdated/internal/updater"

	"github.com/oschwald/geoip2-golang"
)

var ErrNoLocation = errors.New("geoip record has no location")

// lookuper 便于测试替换 *geoip2.Reader
type lookuper interface {
	City(ip net.IP) (*geoip2.City, error)
}

// 文档注释：GeoIP 位置源
// 背景：无 GeoClue2 的环境（服务器、容器）下，用 GeoLite2-City 库把配置的出口 IP 换算为近似坐标并周期性上报。
// 约束：精度为城市级（AccuracyRadius 千米）；仅当与上次上报相比移动达到阈值才发出新坐标，由位置源自行执行阈值。
type Source struct {
	db       lookuper
	closer   func() error
	addr     net.IP
	interval time.Duration
	minDist  float64
	log      *slog.Logger
}

// Open 打开 mmdb 文件
func Open(path, addr string, interval time.Duration, minDistance float64) (*Source, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, fmt.Errorf("geoip: bad address %q", addr)
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip open %s: %w", path, err)
	}
	return newSource(r, r.Close, ip, interval, minDistance), nil
}

func newSource(db lookuper, closer func() error, ip net.IP, interval time.Duration, minDistance float64) *Source {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Source{db: db, closer: closer, addr: ip, interval: interval, minDist: minDistance, log: logger.For("geoip")}
}

// Lookup 查询一次坐标
func (s *Source) Lookup() (updater.Fix, error) {
	rec, err := s.db.City(s.addr)
	if err != nil {
		return updater.Fix{}, err
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return updater.Fix{}, ErrNoLocation
	}
	return updater.Fix{
		Lat:      rec.Location.Latitude,
		Lon:      rec.Location.Longitude,
		Accuracy: float64(rec.Location.AccuracyRadius) * 1000,
		Provider: "geoip",
		At:       time.Now(),
	}, nil
}

// Start 启动轮询；通道在 ctx 取消后关闭
func (s *Source) Start(ctx context.Context) <-chan updater.Fix {
	out := make(chan updater.Fix)
	go func() {
		defer close(out)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		var last *updater.Fix
		for {
			fx, err := s.Lookup()
			if err != nil {
				s.log.Warn("geoip_lookup_error", "ip", s.addr.String(), "err", err)
			} else if last == nil || updater.Moved(*last, fx, s.minDist) {
				select {
				case out <- fx:
					last = &fx
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
	return out
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
