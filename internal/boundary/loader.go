package boundary

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultNameKey：timezone-boundary-builder 发布的 GeoJSON 中时区名所在属性
const DefaultNameKey = "tzid"

var fallbackNameKeys = []string{"tzid", "TZID", "name"}

// 文档注释：从 GeoJSON 文件加载边界
// 背景：支持 timezone-boundary-builder 的 combined.json（FeatureCollection）及其 zip 发布包；也接受单个 Feature。
// 约束：zip 内取第一个 .json/.geojson 成员；几何仅接受 Polygon/MultiPolygon，其余类型视为数据集错误。
func LoadFile(path, nameKey string) Source {
	if nameKey == "" {
		nameKey = DefaultNameKey
	}
	return &fileSource{path: path, nameKey: nameKey}
}

type fileSource struct {
	path    string
	nameKey string
}

func (s *fileSource) Features(ctx context.Context) ([]Feature, error) {
	data, err := readDataset(s.path)
	if err != nil {
		return nil, &DatasetError{Source: s.path, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs, err := DecodeGeoJSON(data, s.nameKey)
	if err != nil {
		if de, ok := err.(*DatasetError); ok {
			de.Source = s.path
			return nil, de
		}
		return nil, &DatasetError{Source: s.path, Err: err}
	}
	return fs, nil
}

func readDataset(path string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return os.ReadFile(path)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	for _, f := range zr.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".json" && ext != ".geojson" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		return b, err
	}
	return nil, fmt.Errorf("no geojson member in %s", path)
}

// DecodeGeoJSON 解析 FeatureCollection 或单个 Feature
func DecodeGeoJSON(data []byte, nameKey string) ([]Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DatasetError{Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	var raw []*geojson.Feature
	switch strings.ToLower(head.Type) {
	case "featurecollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, &DatasetError{Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
		}
		raw = fc.Features
	case "feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, &DatasetError{Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
		}
		raw = []*geojson.Feature{f}
	default:
		return nil, &DatasetError{Err: fmt.Errorf("%w: top-level type %q", ErrUnreadable, head.Type)}
	}
	out := make([]Feature, 0, len(raw))
	for _, f := range raw {
		name := featureName(f.Properties, nameKey)
		mp, err := toMultiPolygon(f.Geometry)
		if err != nil {
			return nil, &DatasetError{Region: name, Err: err}
		}
		out = append(out, Feature{Name: name, Geometry: mp})
	}
	return out, nil
}

// GeometryFromGeoJSON 解析单个 GeoJSON 几何（数据库以文本存储几何时使用）
func GeometryFromGeoJSON(raw []byte) (orb.MultiPolygon, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return toMultiPolygon(g.Geometry())
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: missing geometry", ErrGeometryType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrGeometryType, g.GeoJSONType())
	}
}

func featureName(p geojson.Properties, key string) string {
	if v := p.MustString(key, ""); v != "" {
		return v
	}
	for _, k := range fallbackNameKeys {
		if v := p.MustString(k, ""); v != "" {
			return v
		}
	}
	return ""
}
