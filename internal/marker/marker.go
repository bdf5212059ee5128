// 包 marker：记录到地图标记的投影
// 背景：前端地图组件只负责绘制，标记集合的增删、图标与弹窗内容在此确定
package marker

import (
	"fmt"
	"strings"

	"github.com/mmcloughlin/geohash"

	"paman-dede/internal/record"
)

type Kind string

const (
	KindProject Kind = "project"
	KindPlace   Kind = "place"
)

// 悬停时的层级偏移与放大倍数
const (
	HoverZIndex = 1000
	HoverScale  = 1.2
)

// geohashChars：标记上保存的完整精度，聚合时取前缀
const geohashChars = 12

// UnknownYear：年份为空的项目在弹窗与年份筛选项中的显示值
const UnknownYear = "Tidak diketahui"

// Icon：与 Leaflet L.icon 选项同形
type Icon struct {
	URL         string `json:"iconUrl"`
	Size        [2]int `json:"iconSize"`
	Anchor      [2]int `json:"iconAnchor"`
	PopupAnchor [2]int `json:"popupAnchor"`
}

func newIcon(url string) Icon {
	return Icon{URL: url, Size: [2]int{25, 25}, Anchor: [2]int{12, 12}, PopupAnchor: [2]int{1, -34}}
}

const ProjectIconURL = "/png/E0A9.png"

const DefaultPlaceIconURL = "./default.png"

var placeIcons = map[int]string{
	1: "./png/balai.png",
	2: "./png/kantor.png",
	3: "./png/koramil.png",
	4: "./png/polisi.png",
	5: "./png/puskesmas.png",
	6: "./png/kua.png",
	7: "./png/garpu.png",
}

// PlaceIconURL：设施代码 -> 图标；未知代码使用默认图标
func PlaceIconURL(code int) string {
	if u, ok := placeIcons[code]; ok {
		return u
	}
	return DefaultPlaceIconURL
}

// Popup：弹窗数据；可选字段为空时省略
type Popup struct {
	Title       string `json:"title"`
	Village     string `json:"desa,omitempty"`
	Year        string `json:"tahun,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type Marker struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"kind"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Icon      Icon    `json:"icon"`
	Popup     Popup   `json:"popup"`
	Year      string  `json:"year,omitempty"`
	Village   string  `json:"village,omitempty"`
	Geohash   string  `json:"geohash"`
	ZIndex    int     `json:"zIndexOffset"`
	Scale     float64 `json:"scale"`
	Opacity   float64 `json:"opacity"`
	PopupOpen bool    `json:"popupOpen"`

	restoreZ int
}

// FromProject：坐标无效时返回 false
func FromProject(p record.ProjectRecord) (Marker, bool) {
	if !p.HasCoords {
		return Marker{}, false
	}
	year := p.Year
	if year == "" {
		year = UnknownYear
	}
	return Marker{
		ID:   fmt.Sprintf("project-%d", p.Row),
		Kind: KindProject,
		Lat:  p.Lat,
		Lng:  p.Lng,
		Icon: newIcon(ProjectIconURL),
		Popup: Popup{
			Title:       p.Name,
			Village:     p.Village,
			Year:        year,
			Description: p.Description,
			ImageURL:    p.ImageURL,
		},
		Year:    p.Year,
		Village: p.Village,
		Geohash: geohash.EncodeWithPrecision(p.Lat, p.Lng, geohashChars),
		Scale:   1,
		Opacity: 1,
	}, true
}

// FromPlace：idx 为设施在来源中的序号，用于生成稳定标识
func FromPlace(p record.PlaceRecord, idx int) (Marker, bool) {
	if !p.HasCoords {
		return Marker{}, false
	}
	return Marker{
		ID:   fmt.Sprintf("place-%d", idx),
		Kind: KindPlace,
		Lat:  p.Lat,
		Lng:  p.Lng,
		Icon: newIcon(PlaceIconURL(p.Code)),
		Popup: Popup{
			Title:       strings.TrimSpace(p.Label),
			Description: p.Description,
			ImageURL:    p.ImageURL,
		},
		Geohash: geohash.EncodeWithPrecision(p.Lat, p.Lng, geohashChars),
		Scale:   1,
		Opacity: 1,
	}, true
}
