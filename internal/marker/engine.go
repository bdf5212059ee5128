package marker

import (
	"log/slog"
	"math"
	"sync"

	"paman-dede/internal/logger"
	"paman-dede/internal/metrics"
	"paman-dede/internal/record"
)

// Engine：项目层、设施层与按年份分组的项目层
// 约束：Render* 先清空再重建，返回后标记集合与输入一一对应
type Engine struct {
	mu       sync.RWMutex
	years    []string
	projects *Layer
	places   *Layer
	byYear   map[string]*Layer
	opacity  map[string]float64
	log      *slog.Logger
}

func NewEngine(years []string) *Engine {
	e := &Engine{
		projects: NewLayer(string(KindProject)),
		places:   NewLayer(string(KindPlace)),
		opacity:  make(map[string]float64),
		log:      logger.For("marker"),
	}
	e.SetYears(years)
	return e
}

// SetYears：重建年份分组（空分组）
func (e *Engine) SetYears(years []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.years = append([]string(nil), years...)
	e.byYear = make(map[string]*Layer, len(years))
	for _, y := range years {
		e.byYear[y] = NewLayer("year:" + y)
	}
}

func (e *Engine) Years() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.years...)
}

func (e *Engine) Projects() *Layer { return e.projects }

func (e *Engine) Places() *Layer { return e.places }

// Year：某年份的分组层；未配置的年份返回 false
func (e *Engine) Year(y string) (*Layer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.byYear[y]
	return l, ok
}

// RenderProjects：返回实际生成的标记数
// 背景：年份不在配置列表中的项目只进入总层，并记录日志
func (e *Engine) RenderProjects(ps []record.ProjectRecord) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projects.Clear()
	for _, l := range e.byYear {
		l.Clear()
	}
	for _, p := range ps {
		m, ok := FromProject(p)
		if !ok {
			e.log.Debug("marker_invalid_coords", "kind", KindProject, "name", p.Name, "row", p.Row)
			continue
		}
		if v, ok := e.opacity[yearKey(p.Year)]; ok {
			m.Opacity = v
		}
		e.projects.Add(m)
		if l, ok := e.byYear[p.Year]; ok {
			l.Add(m)
		} else {
			e.log.Debug("marker_unknown_year", "name", p.Name, "year", p.Year)
		}
	}
	n := e.projects.Len()
	metrics.MarkersRendered.WithLabelValues(string(KindProject)).Set(float64(n))
	return n
}

func (e *Engine) RenderPlaces(ps []record.PlaceRecord) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.places.Clear()
	for i, p := range ps {
		m, ok := FromPlace(p, i)
		if !ok {
			e.log.Debug("marker_invalid_coords", "kind", KindPlace, "name", p.Label)
			continue
		}
		e.places.Add(m)
	}
	n := e.places.Len()
	metrics.MarkersRendered.WithLabelValues(string(KindPlace)).Set(float64(n))
	return n
}

// Layer：按类型取层
func (e *Engine) Layer(k Kind) *Layer {
	if k == KindPlace {
		return e.places
	}
	return e.projects
}

// Hover：在项目层与设施层中查找标识并同步年份分组
func (e *Engine) Hover(id string, on bool) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	found := e.projects.Hover(id, on)
	if found {
		for _, l := range e.byYear {
			l.Hover(id, on)
		}
		return true
	}
	return e.places.Hover(id, on)
}

// SetOpacity：设置某年份项目标记的不透明度，返回受影响的标记数
// 约束：v 限制在 0..1；设置保留在引擎中，之后的 RenderProjects 同样生效；空年份归入 UnknownYear
func (e *Engine) SetOpacity(year string, v float64) int {
	switch {
	case math.IsNaN(v):
		v = 1
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	key := yearKey(year)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opacity[key] = v
	n := e.projects.setOpacity(key, v)
	for _, l := range e.byYear {
		l.setOpacity(key, v)
	}
	return n
}

// Opacity：未设置过的年份为 1
func (e *Engine) Opacity(year string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.opacity[yearKey(year)]; ok {
		return v
	}
	return 1
}

// Opacities：已设置的年份不透明度副本
func (e *Engine) Opacities() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.opacity))
	for k, v := range e.opacity {
		out[k] = v
	}
	return out
}

func yearKey(y string) string {
	if y == "" {
		return UnknownYear
	}
	return y
}
