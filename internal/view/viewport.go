package view

import "paman-dede/internal/geo"

// 默认视口：MAP_BOUNDS 无效时使用
var (
	DefaultCenter = [2]float64{-7.7956, 113.4148}
	DefaultZoom   = 13
)

// 村庄定位与搜索定位参数
const (
	VillagePadding = 50
	SearchZoom     = 17
)

// Viewport：地图视口状态
// 约束：Bounds 非空时前端按 Bounds+Padding 适配，忽略 Zoom
type Viewport struct {
	Center  [2]float64 `json:"center"`
	Zoom    int        `json:"zoom,omitempty"`
	Bounds  geo.Bounds `json:"bounds"`
	Padding int        `json:"padding,omitempty"`
}

func defaultViewport() Viewport {
	return Viewport{Center: DefaultCenter, Zoom: DefaultZoom}
}

// FitBounds：适配矩形；空矩形不改变视口
func (v *Viewport) FitBounds(b geo.Bounds) {
	if b.IsEmpty() {
		return
	}
	v.Bounds = b
	v.Center = b.Center()
	v.Zoom = 0
	v.Padding = 0
}

// villageViewport：村庄定位附带内边距
type villageViewport struct{ *Viewport }

func (v villageViewport) FitBounds(b geo.Bounds) {
	v.Viewport.FitBounds(b)
	if !b.IsEmpty() {
		v.Padding = VillagePadding
	}
}

// SetView：定位到中心点与缩放级别，清除矩形
func (v *Viewport) SetView(center [2]float64, zoom int) {
	v.Center = center
	v.Zoom = zoom
	v.Bounds = geo.Bounds{}
	v.Padding = 0
}
