package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var ErrEmptyGeometry = errors.New("boundary document has no geometry")

// Boundary：一个村（或合并图层）的边界
// 约束：Raw 保留原始文档，供前端直接绘制；Bounds 覆盖全部几何
type Boundary struct {
	ID         string
	Geometries []geom.T
	Names      []string
	Bounds     Bounds
	Raw        json.RawMessage
}

// ParseBoundary：解析 FeatureCollection / Feature / 裸几何
// 异常：零几何返回 ErrEmptyGeometry（视为降级，不中断会话）
func ParseBoundary(id string, b []byte) (*Boundary, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("boundary %s: %w", id, err)
	}
	out := &Boundary{ID: id, Bounds: EmptyBounds(), Raw: append(json.RawMessage(nil), b...)}
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("boundary %s: %w", id, err)
		}
		for _, f := range fc.Features {
			out.addFeature(f)
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("boundary %s: %w", id, err)
		}
		out.addFeature(&f)
	default:
		var g geom.T
		if err := geojson.Unmarshal(b, &g); err != nil {
			return nil, fmt.Errorf("boundary %s: %w", id, err)
		}
		out.add(g)
	}
	if len(out.Geometries) == 0 {
		return nil, fmt.Errorf("boundary %s: %w", id, ErrEmptyGeometry)
	}
	return out, nil
}

func (b *Boundary) addFeature(f *geojson.Feature) {
	if f == nil || !b.add(f.Geometry) {
		return
	}
	if name := featureName(f.Properties); name != "" {
		b.Names = append(b.Names, name)
	}
}

// add：忽略空几何；坐标布局为 [lng, lat]
func (b *Boundary) add(g geom.T) bool {
	if g == nil || g.Empty() {
		return false
	}
	gb := g.Bounds()
	b.Bounds = b.Bounds.
		Extend(gb.Min(1), gb.Min(0)).
		Extend(gb.Max(1), gb.Max(0))
	b.Geometries = append(b.Geometries, g)
	return true
}

// 常见村名属性键（BIG / geoBoundaries 导出）
var nameKeys = []string{"desa", "nama", "namobj", "name", "shapename", "village"}

func featureName(props map[string]any) string {
	for _, want := range nameKeys {
		for k, v := range props {
			if strings.EqualFold(k, want) {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

// Merge：多个边界合并为一个（旧版编号文件组成的统一图层）
func Merge(id string, parts []*Boundary) (*Boundary, error) {
	out := &Boundary{ID: id, Bounds: EmptyBounds()}
	raws := make([]json.RawMessage, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Geometries = append(out.Geometries, p.Geometries...)
		out.Names = append(out.Names, p.Names...)
		out.Bounds = out.Bounds.Union(p.Bounds)
		raws = append(raws, p.Raw)
	}
	if len(out.Geometries) == 0 {
		return nil, fmt.Errorf("boundary %s: %w", id, ErrEmptyGeometry)
	}
	raw, err := json.Marshal(raws)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}
