package boundary

import (
	"math"

	"github.com/paulmach/orb"
)

// 文档注释：环校验
// 背景：不修复畸形输入；环少于 3 个不同顶点、坐标越界或（开启时）自相交均视为数据集错误。
// 约束：GeoJSON 环首尾闭合，闭合重复点不计入顶点数；自相交检测为 O(n²)，仅在显式开启时执行。
func validateRing(r orb.Ring, simple bool) error {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			return ErrBadCoordinate
		}
		seen[p] = struct{}{}
	}
	if len(seen) < 3 {
		return ErrRingTooShort
	}
	if simple && selfIntersects(r) {
		return ErrSelfIntersecting
	}
	return nil
}

// openRing 去掉闭合点与相邻重复点
func openRing(r orb.Ring) []orb.Point {
	out := make([]orb.Point, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

func selfIntersects(r orb.Ring) bool {
	pts := openRing(r)
	n := len(pts)
	for i := 0; i < n; i++ {
		a1, a2 := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// 相邻边共享端点，不计为相交
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := pts[j], pts[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func within(a, b, c orb.Point) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := orient(p3, p4, p1)
	d2 := orient(p3, p4, p2)
	d3 := orient(p1, p2, p3)
	d4 := orient(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && within(p3, p4, p1):
		return true
	case d2 == 0 && within(p3, p4, p2):
		return true
	case d3 == 0 && within(p1, p2, p3):
		return true
	case d4 == 0 && within(p1, p2, p4):
		return true
	}
	return false
}
