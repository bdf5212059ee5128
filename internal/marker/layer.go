package marker

import (
	"sort"
	"sync"

	"github.com/mmcloughlin/geohash"
)

// Layer：一组标记（项目、设施或某一年份），按插入顺序保存
// 约束：同一 ID 只保留一个标记
type Layer struct {
	mu    sync.RWMutex
	name  string
	items []Marker
	index map[string]int
}

func NewLayer(name string) *Layer {
	return &Layer{name: name, index: make(map[string]int)}
}

func (l *Layer) Name() string { return l.name }

func (l *Layer) Clear() {
	l.mu.Lock()
	l.items = l.items[:0]
	l.index = make(map[string]int)
	l.mu.Unlock()
}

// Add：已存在相同 ID 时原位替换
func (l *Layer) Add(m Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[m.ID]; ok {
		l.items[i] = m
		return
	}
	l.index[m.ID] = len(l.items)
	l.items = append(l.items, m)
}

func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Markers：副本
func (l *Layer) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Marker, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Layer) Get(id string) (Marker, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[id]
	if !ok {
		return Marker{}, false
	}
	return l.items[i], true
}

// Hover：on=true 时置顶、放大并打开弹窗；on=false 时恢复原层级并关闭
// 约束：只改变展示状态，不影响记录；重复进入不会覆盖原层级
func (l *Layer) Hover(id string, on bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[id]
	if !ok {
		return false
	}
	m := &l.items[i]
	if on {
		if !m.PopupOpen {
			m.restoreZ = m.ZIndex
		}
		m.ZIndex, m.Scale, m.PopupOpen = HoverZIndex, HoverScale, true
		return true
	}
	if m.PopupOpen {
		m.ZIndex = m.restoreZ
	}
	m.Scale, m.PopupOpen = 1, false
	return true
}

func (l *Layer) setOpacity(key string, v float64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.items {
		if l.items[i].Kind == KindProject && yearKey(l.items[i].Year) == key {
			l.items[i].Opacity = v
			n++
		}
	}
	return n
}

// Cluster：同一 geohash 单元内的标记汇总
type Cluster struct {
	Geohash string     `json:"geohash"`
	Count   int        `json:"count"`
	Lat     float64    `json:"lat"`
	Lng     float64    `json:"lng"`
	Box     [4]float64 `json:"box"`
	IDs     []string   `json:"ids"`
}

// Clusters：按 geohash 前缀聚合；Lat/Lng 为成员坐标均值，Box 为 [minLat, minLng, maxLat, maxLng]
// 约束：precision 限制在 1..12；结果按数量降序、geohash 升序
func (l *Layer) Clusters(precision int) []Cluster {
	if precision < 1 {
		precision = 1
	}
	if precision > geohashChars {
		precision = geohashChars
	}
	l.mu.RLock()
	byCell := make(map[string]*Cluster)
	for _, m := range l.items {
		cell := geohash.EncodeWithPrecision(m.Lat, m.Lng, uint(precision))
		c, ok := byCell[cell]
		if !ok {
			box := geohash.BoundingBox(cell)
			c = &Cluster{Geohash: cell, Box: [4]float64{box.MinLat, box.MinLng, box.MaxLat, box.MaxLng}}
			byCell[cell] = c
		}
		c.Count++
		c.Lat += m.Lat
		c.Lng += m.Lng
		c.IDs = append(c.IDs, m.ID)
	}
	l.mu.RUnlock()

	out := make([]Cluster, 0, len(byCell))
	for _, c := range byCell {
		c.Lat /= float64(c.Count)
		c.Lng /= float64(c.Count)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Geohash < out[j].Geohash
	})
	return out
}
