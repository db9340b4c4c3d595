package api

import "time"

// 文档注释：查询返回结构（对外）
// 背景：统一对外序列化模型；未命中时 found=false、timezone 为空，不作为错误返回。
type timezoneResult struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Timezone  string   `json:"timezone"`
	Found     bool     `json:"found"`
	Ambiguous bool     `json:"ambiguous,omitempty"`
	Matches   []string `json:"matches,omitempty"`
	Source    string   `json:"source,omitempty"`
}

type currentResult struct {
	Timezone    string  `json:"timezone"`
	Known       bool    `json:"known"`
	MinDistance float64 `json:"min_distance_m"`
}

type regionsResult struct {
	Count    int       `json:"count"`
	Polygons int       `json:"polygons"`
	BuiltAt  time.Time `json:"built_at"`
	Regions  []string  `json:"regions"`
}

type fixRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
}

type fixResult struct {
	Changed  bool   `json:"changed"`
	Timezone string `json:"timezone"`
	Previous string `json:"previous,omitempty"`
	Error    string `json:"error,omitempty"`
}

type errorResult struct {
	Error string `json:"error"`
}
