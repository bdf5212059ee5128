package filter

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"paman-dede/internal/marker"
	"paman-dede/internal/metrics"
)

// Hit：一条搜索结果
type Hit struct {
	Lat    float64     `json:"lat"`
	Lng    float64     `json:"lng"`
	Label  string      `json:"label"`
	Detail string      `json:"detail,omitempty"`
	Kind   marker.Kind `json:"kind"`
}

// fold：NFKC 归一后转小写，用于不区分大小写的子串匹配
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

// Search：项目名称/村名与设施名称的子串匹配，项目在前
// 约束：空白关键词返回空结果；坐标无效的记录不出现在结果中（无法定位）
// 返回值：无命中时为非 nil 的空切片
func (c *Controller) Search(term string) []Hit {
	q := fold(term)
	hits := []Hit{}
	if q == "" {
		metrics.SearchTotal.WithLabelValues("blank").Inc()
		return hits
	}
	for _, p := range c.projects {
		if !p.HasCoords {
			continue
		}
		if strings.Contains(fold(p.Name), q) || strings.Contains(fold(p.Village), q) {
			hits = append(hits, Hit{Lat: p.Lat, Lng: p.Lng, Label: p.Name, Detail: p.Village, Kind: marker.KindProject})
		}
	}
	for _, p := range c.places {
		if !p.HasCoords {
			continue
		}
		if strings.Contains(fold(p.Label), q) {
			hits = append(hits, Hit{Lat: p.Lat, Lng: p.Lng, Label: p.Label, Detail: p.Description, Kind: marker.KindPlace})
		}
	}
	outcome := "hit"
	if len(hits) == 0 {
		outcome = "miss"
	}
	metrics.SearchTotal.WithLabelValues(outcome).Inc()
	return hits
}
