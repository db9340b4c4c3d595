package boundary

import (
	"math"

	"github.com/paulmach/orb"
)

// 文档注释：时区边界的最小数据结构
// 背景：统一承载时区名称与几何；数据集在启动时加载一次，之后只读，可被任意数量的查询并发共享。
// 约束：几何仅支持 Polygon/MultiPolygon；每个多边形第一环为外环，其余为洞（飞地）。
type Region struct {
	Name     string
	Polygons []*Polygon
}

// Polygon：索引持有的单个多边形，附带所属时区、稳定编号、包围盒与面积
type Polygon struct {
	ID     int
	Region string
	Shape  orb.Polygon
	Bound  orb.Bound
	Area   float64 // 平面面积（度²），外环减去洞
}

// Outer 返回外环
func (p *Polygon) Outer() orb.Ring {
	if len(p.Shape) == 0 {
		return nil
	}
	return p.Shape[0]
}

// Holes 返回洞环（可能为空）
func (p *Polygon) Holes() []orb.Ring {
	if len(p.Shape) < 2 {
		return nil
	}
	return p.Shape[1:]
}

// 点坐标（WGS84，度）
type Point struct {
	Lat float64
	Lon float64
}

// Valid：纬度在 [-90,90]、经度在 [-180,180] 且非 NaN
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Orb 转为 orb.Point（经度在前）
func (p Point) Orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// Feature：加载器产出的原始条目，一个时区名对应一个 MultiPolygon；同名条目在构建时合并。
type Feature struct {
	Name     string
	Geometry orb.MultiPolygon
}
