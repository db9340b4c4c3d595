package resolver

import (
	"math"

	"github.com/paulmach/orb"
)

// 边上判定的叉积容差（度²）
const edgeEps = 1e-12

// 文档注释：点入多边形判定（Even-Odd，闭多边形语义）
// 背景：对候选集合执行精确命中判定；外环命中且不在洞内视为命中。
// 约束：落在任一环（外环或洞环）边或顶点上的点视为命中；这是相邻时区共享边时的平局前提，由上层按面积规则裁决。
func containsPoint(pt orb.Point, poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	in, edge := ringContains(pt, poly[0])
	if edge {
		return true
	}
	if !in {
		return false
	}
	for _, hole := range poly[1:] {
		in, edge := ringContains(pt, hole)
		if edge {
			return true
		}
		if in {
			return false
		}
	}
	return true
}

// 射线法判定点是否在环内，并单独报告是否落在边上
func ringContains(pt orb.Point, ring orb.Ring) (inside, onEdge bool) {
	n := len(ring)
	if n < 3 {
		return false, false
	}
	x, y := pt[0], pt[1]
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(ring[j], ring[i], pt) {
			return false, true
		}
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside, false
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > edgeEps {
		return false
	}
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}
