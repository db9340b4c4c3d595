package geoclue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tzupdated/internal/logger"
	"tzupdated/internal/updater"

	"github.com/godbus/dbus/v5"
)

const (
	BusName = "org.freedesktop.GeoClue2"

	managerPath        = "/org/freedesktop/GeoClue2/Manager"
	managerInterface   = BusName + ".Manager"
	clientInterface    = BusName + ".Client"
	locationInterface  = BusName + ".Location"
	locationUpdatedSig = clientInterface + ".LocationUpdated"
)

// AccuracyCity GeoClue2 的 CITY 精度等级；时区判定不需要更高精度
const AccuracyCity uint32 = 4

var (
	ErrAlreadyStarted = errors.New("geoclue client already started")
	ErrNotRunning     = errors.New("geoclue client not running")
)

// 文档注释：GeoClue2 位置源
// 背景：通过系统总线向 GeoClue2 申请客户端，按最小移动阈值接收 LocationUpdated 信号，转为 updater.Fix 流。
// 约束：Start/Stop 成对使用（获取订阅、退出时保证释放）；信号体或属性读取异常只记录并跳过，不 panic。
type Client struct {
	conn   *dbus.Conn
	client dbus.BusObject
	object func(dbus.ObjectPath) dbus.BusObject
	log    *slog.Logger

	mu      sync.Mutex
	signals chan *dbus.Signal
	cancel  context.CancelFunc
	done    chan struct{}
}

// Options：客户端属性
type Options struct {
	DesktopID string
	// 米；取编排器的 MinDistance()
	DistanceThreshold float64
	Accuracy          uint32
}

// New 向 GeoClue2 管理器申请客户端并设置属性
func New(ctx context.Context, conn *dbus.Conn, opt Options) (*Client, error) {
	if opt.Accuracy == 0 {
		opt.Accuracy = AccuracyCity
	}
	var clientPath dbus.ObjectPath
	manager := conn.Object(BusName, managerPath)
	if err := manager.CallWithContext(ctx, managerInterface+".GetClient", 0).Store(&clientPath); err != nil {
		return nil, fmt.Errorf("geoclue GetClient: %w", err)
	}
	obj := conn.Object(BusName, clientPath)
	props := []struct {
		name string
		val  any
	}{
		{"DesktopId", opt.DesktopID},
		{"DistanceThreshold", uint32(opt.DistanceThreshold)},
		{"RequestedAccuracyLevel", opt.Accuracy},
	}
	for _, p := range props {
		if err := obj.SetProperty(clientInterface+"."+p.name, dbus.MakeVariant(p.val)); err != nil {
			return nil, fmt.Errorf("geoclue set %s: %w", p.name, err)
		}
	}
	return &Client{
		conn:   conn,
		client: obj,
		object: func(p dbus.ObjectPath) dbus.BusObject { return conn.Object(BusName, p) },
		log:    logger.For("geoclue"),
	}, nil
}

// Start 订阅位置更新；返回的通道在 Stop 或 ctx 取消后关闭
func (c *Client) Start(ctx context.Context) (<-chan updater.Fix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil, ErrAlreadyStarted
	}
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(c.client.Path()),
		dbus.WithMatchInterface(clientInterface),
		dbus.WithMatchMember("LocationUpdated"),
	); err != nil {
		return nil, fmt.Errorf("geoclue add match: %w", err)
	}
	c.signals = make(chan *dbus.Signal, 10)
	c.conn.Signal(c.signals)

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	out := make(chan updater.Fix)
	go c.loop(ctx, out)

	if call := c.client.CallWithContext(ctx, clientInterface+".Start", 0); call.Err != nil {
		c.stopLocked()
		return nil, fmt.Errorf("geoclue Start: %w", call.Err)
	}
	c.log.Info("geoclue_started", "path", c.client.Path())
	return out, nil
}

func (c *Client) loop(ctx context.Context, out chan<- updater.Fix) {
	defer close(c.done)
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}
			if sig.Name != locationUpdatedSig || sig.Path != c.client.Path() {
				continue
			}
			var oldPath, newPath dbus.ObjectPath
			if err := dbus.Store(sig.Body, &oldPath, &newPath); err != nil {
				c.log.Warn("geoclue_signal_decode_error", "err", err)
				continue
			}
			fx, err := c.readLocation(ctx, newPath)
			if err != nil {
				c.log.Warn("geoclue_location_read_error", "path", newPath, "err", err)
				continue
			}
			select {
			case out <- fx:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) readLocation(ctx context.Context, path dbus.ObjectPath) (updater.Fix, error) {
	obj := c.object(path)
	fx := updater.Fix{Provider: "geoclue", At: time.Now()}
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"Latitude", &fx.Lat},
		{"Longitude", &fx.Lon},
		{"Accuracy", &fx.Accuracy},
	} {
		v, err := obj.GetProperty(locationInterface + "." + p.name)
		if err != nil {
			if p.name == "Accuracy" {
				continue
			}
			return updater.Fix{}, err
		}
		f, ok := v.Value().(float64)
		if !ok {
			return updater.Fix{}, fmt.Errorf("%s: unexpected type %s", p.name, v.Signature())
		}
		*p.dst = f
	}
	if err := ctx.Err(); err != nil {
		return updater.Fix{}, err
	}
	return fx, nil
}

// Stop 停止订阅并通知 GeoClue2 释放客户端
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return ErrNotRunning
	}
	c.stopLocked()
	return c.client.Call(clientInterface+".Stop", 0).Err
}

func (c *Client) stopLocked() {
	c.cancel()
	<-c.done
	c.conn.RemoveSignal(c.signals)
	_ = c.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(c.client.Path()),
		dbus.WithMatchInterface(clientInterface),
		dbus.WithMatchMember("LocationUpdated"),
	)
	c.done = nil
	c.log.Info("geoclue_stopped")
}
