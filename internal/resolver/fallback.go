package resolver

import (
	"fmt"
	"strings"

	"github.com/bradfitz/latlong"
	"github.com/ringsaturn/tzf"
)

// 文档注释：兜底引擎
// 背景：边界数据集存在缺口（海域、未覆盖区域）时，可选地交给内置表驱动的引擎给出近似时区。
// 约束：仅在数据集零命中时调用；返回空串表示同样未知。默认关闭，以保持“缺口即未命中”的语义。
type Fallback interface {
	Name() string
	Lookup(lat, lon float64) string
}

// LatLong 基于 bradfitz/latlong 的压缩栅格表
type LatLong struct{}

func (LatLong) Name() string { return "latlong" }

func (LatLong) Lookup(lat, lon float64) string {
	z := latlong.LookupZoneName(lat, lon)
	if z == "tables not generated yet" {
		return ""
	}
	return z
}

// TZF 基于 ringsaturn/tzf 的简化多边形数据
type TZF struct {
	f tzf.F
}

func NewTZF() (*TZF, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("tzf finder: %w", err)
	}
	return &TZF{f: f}, nil
}

func (t *TZF) Name() string { return "tzf" }

// tzf 参数顺序为 (lng, lat)
func (t *TZF) Lookup(lat, lon float64) string { return t.f.GetTimezoneName(lon, lat) }

// NewFallback 按名称构造兜底引擎；"" 或 "none" 返回 nil
func NewFallback(name string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "latlong":
		return LatLong{}, nil
	case "tzf":
		t, err := NewTZF()
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown resolver fallback %q", name)
}
