package boundary

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDataset     = errors.New("dataset has no polygons")
	ErrMissingName      = errors.New("feature has no timezone name")
	ErrEmptyPolygon     = errors.New("polygon has no rings")
	ErrRingTooShort     = errors.New("ring has fewer than 3 distinct vertices")
	ErrBadCoordinate    = errors.New("vertex outside lat/lon range")
	ErrSelfIntersecting = errors.New("ring is self-intersecting")
	ErrGeometryType     = errors.New("unsupported geometry type")
	ErrUnreadable       = errors.New("dataset unreadable")
)

// 文档注释：数据集错误
// 背景：加载期一次性抛出，对启动是致命的；失败时不构造任何部分索引。
// 约束：Err 为上面的哨兵错误或底层 I/O/解析错误，调用方用 errors.Is 判定类别。
type DatasetError struct {
	Source  string
	Region  string
	Polygon int
	Ring    int
	Err     error
}

func (e *DatasetError) Error() string {
	msg := "boundary dataset"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.Region != "" {
		msg += fmt.Sprintf(": region %q polygon %d ring %d", e.Region, e.Polygon, e.Ring)
	}
	return msg + ": " + e.Err.Error()
}

func (e *DatasetError) Unwrap() error { return e.Err }
