package boundary

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"tzupdated/internal/logger"
	"tzupdated/internal/metrics"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb/planar"
)

const (
	// 包围盒外扩量：保证恰好落在边上的查询点不会被 R-Tree 剪枝
	boundPad = 1e-9
	queryTol = 1e-9

	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// Source：可插拔的数据集加载器（文件、数据库等）
type Source interface {
	Features(ctx context.Context) ([]Feature, error)
}

type options struct {
	simple bool
	name   string
}

type Option func(*options)

// WithSimpleRings 开启自相交校验
func WithSimpleRings(on bool) Option { return func(o *options) { o.simple = on } }

// WithSourceName 设置错误与日志中展示的数据源名称
func WithSourceName(name string) Option { return func(o *options) { o.name = name } }

// 文档注释：时区边界索引
// 背景：持有不可变的时区区域集合，并以 R-Tree 按包围盒预筛候选多边形，避免每次查询遍历全部多边形。
// 约束：构建完成后只读，任意并发读者无需加锁；重新加载不在此处支持，进程生命周期内视为固定。
type Index struct {
	regions []Region
	polys   []*Polygon
	tree    *rtreego.Rtree
	builtAt time.Time
}

type entry struct {
	poly *Polygon
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

// Load 从数据源读取并构建索引；读取失败统一包装为 DatasetError
func Load(ctx context.Context, src Source, opts ...Option) (*Index, error) {
	t0 := time.Now()
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	fs, err := src.Features(ctx)
	if err != nil {
		logger.L().Error("dataset_read_error", "source", o.name, "err", err)
		var de *DatasetError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &DatasetError{Source: o.name, Err: err}
	}
	ix, err := Build(fs, opts...)
	if err != nil {
		logger.L().Error("dataset_build_error", "source", o.name, "err", err)
		return nil, err
	}
	metrics.DatasetLoadDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	logger.L().Info("dataset_load_ok", "source", o.name, "regions", len(ix.regions), "polygons", len(ix.polys), "ms", time.Since(t0).Milliseconds())
	return ix, nil
}

// Build 校验已解码的条目并建立空间索引；任一环非法即整体失败
func Build(features []Feature, opts ...Option) (*Index, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	byName := make(map[string]int)
	ix := &Index{}
	for _, f := range features {
		if f.Name == "" {
			return nil, &DatasetError{Source: o.name, Err: ErrMissingName}
		}
		ri, ok := byName[f.Name]
		if !ok {
			ri = len(ix.regions)
			byName[f.Name] = ri
			ix.regions = append(ix.regions, Region{Name: f.Name})
		}
		for pi, shape := range f.Geometry {
			if len(shape) == 0 {
				return nil, &DatasetError{Source: o.name, Region: f.Name, Polygon: pi, Err: ErrEmptyPolygon}
			}
			for ri2, ring := range shape {
				if err := validateRing(ring, o.simple); err != nil {
					return nil, &DatasetError{Source: o.name, Region: f.Name, Polygon: pi, Ring: ri2, Err: err}
				}
			}
			p := &Polygon{
				ID:     len(ix.polys),
				Region: f.Name,
				Shape:  shape,
				Bound:  shape.Bound(),
				Area:   math.Abs(planar.Area(shape)),
			}
			ix.polys = append(ix.polys, p)
			ix.regions[ri].Polygons = append(ix.regions[ri].Polygons, p)
		}
	}
	if len(ix.polys) == 0 {
		return nil, &DatasetError{Source: o.name, Err: ErrEmptyDataset}
	}
	objs := make([]rtreego.Spatial, 0, len(ix.polys))
	for _, p := range ix.polys {
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{p.Bound.Min[0] - boundPad, p.Bound.Min[1] - boundPad},
			rtreego.Point{p.Bound.Max[0] + boundPad, p.Bound.Max[1] + boundPad},
		)
		if err != nil {
			return nil, &DatasetError{Source: o.name, Region: p.Region, Polygon: p.ID, Err: err}
		}
		objs = append(objs, &entry{poly: p, rect: rect})
	}
	ix.tree = rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...)
	ix.builtAt = time.Now()
	metrics.DatasetPolygons.Set(float64(len(ix.polys)))
	return ix, nil
}

// 文档注释：候选多边形
// 背景：仅做性能剪枝，正确性由精确的点入多边形判定保证；返回按多边形编号排序，迭代顺序确定。
func (ix *Index) Candidates(pt Point) []*Polygon {
	if ix == nil || ix.tree == nil || !pt.Valid() {
		return nil
	}
	hits := ix.tree.SearchIntersect(rtreego.Point{pt.Lon, pt.Lat}.ToRect(queryTol))
	out := make([]*Polygon, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*entry).poly)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Regions 返回全部时区名（按加载顺序）
func (ix *Index) Regions() []string {
	out := make([]string, 0, len(ix.regions))
	for _, r := range ix.regions {
		out = append(out, r.Name)
	}
	return out
}

// Region 按名称查找区域
func (ix *Index) Region(name string) (Region, bool) {
	for _, r := range ix.regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

func (ix *Index) Len() int { return len(ix.polys) }

func (ix *Index) BuiltAt() time.Time { return ix.builtAt }
