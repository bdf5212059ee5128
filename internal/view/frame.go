package view

import (
	"strings"

	"paman-dede/internal/filter"
	"paman-dede/internal/geo"
	"paman-dede/internal/marker"
)

// SearchResult：最近一次搜索
// 约束：NoResults 表示“无结果”，不是错误
type SearchResult struct {
	Term      string       `json:"term"`
	Hits      []filter.Hit `json:"hits"`
	NoResults bool         `json:"noResults"`
}

// SelectionView：筛选条件的序列化形式
type SelectionView struct {
	Years   []string `json:"years"`
	Village string   `json:"desa"`
}

func selectionView(s filter.Selection) SelectionView {
	return SelectionView{Years: s.YearList(), Village: s.Village}
}

// Frame：一次渲染后前端需要绘制的全部内容
type Frame struct {
	Selection      SelectionView   `json:"selection"`
	Matched        int             `json:"matched"`
	Projects       []marker.Marker `json:"projects"`
	Places         []marker.Marker `json:"places"`
	Viewport       Viewport        `json:"viewport"`
	ShowBoundaries bool            `json:"showBoundaries"`
	Boundaries     []string        `json:"boundaries"`
	Search         *SearchResult   `json:"search,omitempty"`
}

// Status：会话状态
type Status struct {
	ID      string `json:"id"`
	Loading bool   `json:"loading"`
	Ready   bool   `json:"ready"`
	Flash   *Flash `json:"flash,omitempty"`
	Stats   Stats  `json:"stats"`
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{ID: s.ID, Loading: s.loading, Ready: s.ready, Flash: s.currentFlashLocked(), Stats: s.stats}
}

// Snapshot：当前会话的完整画面
func (s *Session) Snapshot() (Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return Frame{}, ErrNotReady
	}
	return s.frameLocked(), nil
}

func (s *Session) frameLocked() Frame {
	f := Frame{
		Selection:      selectionView(s.ctrl.Selection()),
		Matched:        s.last.Matched,
		Projects:       s.engine.Projects().Markers(),
		Places:         s.engine.Places().Markers(),
		Viewport:       s.viewport,
		ShowBoundaries: s.showBoundaries,
		Boundaries:     []string{},
		Search:         s.search,
	}
	if s.showBoundaries {
		f.Boundaries = s.cache.IDs()
		if s.unified != nil {
			f.Boundaries = append(f.Boundaries, geo.UnifiedID)
		}
	}
	return f
}

// Dispatch：应用一个意图；筛选类意图只触发一次重绘
func (s *Session) Dispatch(in Intent) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return Frame{}, ErrNotReady
	}
	switch it := in.(type) {
	case SetYears:
		sel := s.ctrl.Selection()
		s.ctrl.SetSelection(filter.NewSelection(it.Years, sel.Village))
		s.applyLocked()
	case ToggleYear:
		s.ctrl.SetSelection(s.ctrl.Selection().Toggle(strings.TrimSpace(it.Year)))
		s.applyLocked()
	case SetVillage:
		sel := s.ctrl.Selection()
		sel.Village = strings.TrimSpace(it.Village)
		s.ctrl.SetSelection(sel)
		s.applyLocked()
	case Search:
		hits := s.ctrl.Search(it.Term)
		s.search = &SearchResult{Term: it.Term, Hits: hits, NoResults: len(hits) == 0}
		if len(hits) > 0 {
			s.viewport.SetView([2]float64{hits[0].Lat, hits[0].Lng}, SearchZoom)
		}
	case ToggleBoundaries:
		s.showBoundaries = it.Show
	case Hover:
		s.engine.Hover(it.ID, it.On)
	case SetOpacity:
		s.engine.SetOpacity(strings.TrimSpace(it.Year), it.Opacity)
	}
	return s.frameLocked(), nil
}

func (s *Session) applyLocked() {
	vp := &s.viewport
	var target filter.Viewport = vp
	if s.ctrl.Selection().Village != "" {
		target = villageViewport{vp}
	}
	s.last = s.ctrl.ApplyFilters(s.engine, s.cache, target)
}

// Preview：按给定条件计算画面，不改变会话自身的筛选与标记
// 背景：HTTP 请求彼此独立，不能共享同一份筛选状态
func (s *Session) Preview(sel filter.Selection) (Frame, error) {
	return s.PreviewWithOpacity(sel, nil)
}

// PreviewWithOpacity：opacity 覆盖会话中对应年份的不透明度
func (s *Session) PreviewWithOpacity(sel filter.Selection, opacity map[string]float64) (Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return Frame{}, ErrNotReady
	}
	engine := marker.NewEngine(s.engine.Years())
	for y, v := range s.engine.Opacities() {
		engine.SetOpacity(y, v)
	}
	for y, v := range opacity {
		engine.SetOpacity(y, v)
	}
	matched := s.ctrl.Query(sel)
	engine.RenderProjects(matched)
	engine.RenderPlaces(s.ctrl.Places())

	vp := s.viewport
	var target filter.Viewport = &vp
	if sel.Village != "" {
		target = villageViewport{&vp}
	}
	if b, ok := s.ctrl.TargetBounds(sel, s.cache); ok {
		target.FitBounds(b)
	}
	f := Frame{
		Selection:      selectionView(sel),
		Matched:        len(matched),
		Projects:       engine.Projects().Markers(),
		Places:         engine.Places().Markers(),
		Viewport:       vp,
		ShowBoundaries: s.showBoundaries,
		Boundaries:     []string{},
	}
	if s.showBoundaries {
		f.Boundaries = s.cache.IDs()
		if s.unified != nil {
			f.Boundaries = append(f.Boundaries, geo.UnifiedID)
		}
	}
	return f, nil
}

// PreviewClusters：与 Preview 相同的条件下按 geohash 聚合项目标记
func (s *Session) PreviewClusters(sel filter.Selection, precision int) ([]marker.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	engine := marker.NewEngine(nil)
	engine.RenderProjects(s.ctrl.Query(sel))
	return engine.Projects().Clusters(precision), nil
}

// DefaultSelection：全部年份，不限村庄
func (s *Session) DefaultSelection() filter.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctrl == nil {
		return filter.Selection{Years: map[string]bool{}}
	}
	return s.ctrl.DefaultSelection()
}

// Search：无状态搜索
func (s *Session) Search(term string) ([]filter.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	return s.ctrl.Search(term), nil
}
