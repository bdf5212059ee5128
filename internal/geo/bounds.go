// 包 geo：村界文档的解析、缓存与并发加载
package geo

import (
	"encoding/json"

	"github.com/golang/geo/s2"
)

// Bounds：经纬度矩形，零值为空
// 约束：序列化为 [[south, west], [north, east]]，与 MAP_BOUNDS 同形
type Bounds struct {
	rect s2.Rect
	set  bool
}

func EmptyBounds() Bounds { return Bounds{rect: s2.EmptyRect()} }

// FromPairs：由 [[lat,lng],...] 构造；空输入返回空矩形
func FromPairs(pairs [][2]float64) Bounds {
	b := EmptyBounds()
	for _, p := range pairs {
		b = b.Extend(p[0], p[1])
	}
	return b
}

func (b Bounds) Extend(lat, lng float64) Bounds {
	ll := s2.LatLngFromDegrees(lat, lng)
	if !b.set {
		return Bounds{rect: s2.RectFromLatLng(ll), set: true}
	}
	return Bounds{rect: b.rect.AddPoint(ll), set: true}
}

func (b Bounds) IsEmpty() bool { return !b.set || b.rect.IsEmpty() }

func (b Bounds) Union(o Bounds) Bounds {
	switch {
	case o.IsEmpty():
		return b
	case b.IsEmpty():
		return o
	}
	return Bounds{rect: b.rect.Union(o.rect), set: true}
}

func (b Bounds) Contains(lat, lng float64) bool {
	if b.IsEmpty() {
		return false
	}
	return b.rect.ContainsLatLng(s2.LatLngFromDegrees(lat, lng))
}

// Center：矩形中心 [lat, lng]
func (b Bounds) Center() [2]float64 {
	c := b.rect.Center()
	return [2]float64{c.Lat.Degrees(), c.Lng.Degrees()}
}

// Pairs：[[south, west], [north, east]]；空矩形返回 nil
func (b Bounds) Pairs() [][2]float64 {
	if b.IsEmpty() {
		return nil
	}
	lo, hi := b.rect.Lo(), b.rect.Hi()
	return [][2]float64{
		{lo.Lat.Degrees(), lo.Lng.Degrees()},
		{hi.Lat.Degrees(), hi.Lng.Degrees()},
	}
}

func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Pairs())
}

func (b *Bounds) UnmarshalJSON(data []byte) error {
	var pairs [][2]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	*b = FromPairs(pairs)
	return nil
}
