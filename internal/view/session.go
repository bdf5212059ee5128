// 包 view：会话对象，串联配置、表格、设施、标记、筛选与边界
// 背景：前端只负责绘制；会话状态集中在 Session 中，通过意图修改
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"paman-dede/internal/config"
	"paman-dede/internal/filter"
	"paman-dede/internal/geo"
	"paman-dede/internal/logger"
	"paman-dede/internal/marker"
	"paman-dede/internal/metrics"
	"paman-dede/internal/record"
)

var ErrNotReady = errors.New("view: session not initialized")

// Source：会话的数据来源（本地后端或远端 HTTP）
type Source interface {
	FetchConfig(ctx context.Context) (*config.MapConfig, error)
	FetchSheet(ctx context.Context) ([]byte, error)
	FetchPlaces(ctx context.Context) ([]record.PlaceRecord, error)
	FetchBoundary(ctx context.Context, id string) ([]byte, error)
}

type Options struct {
	FlashTTL            time.Duration
	BoundaryConcurrency int
	Villages            filter.Villages
	// NumberedBoundaries>0 时额外按旧版编号文件加载统一边界图层
	NumberedBoundaries int
	Now                func() time.Time
}

// Flash：一次性提示，到期后自动消失
type Flash struct {
	Message string    `json:"message"`
	Expires time.Time `json:"expires"`
}

// Stats：最近一次成功初始化的数据概况
type Stats struct {
	Delimiter        string            `json:"delimiter"`
	Fallback         bool              `json:"fallback"`
	Rows             int               `json:"rows"`
	Dropped          int               `json:"dropped"`
	Places           int               `json:"places"`
	PlacesError      string            `json:"placesError,omitempty"`
	BoundariesLoaded []string          `json:"boundariesLoaded"`
	BoundariesFailed map[string]string `json:"boundariesFailed,omitempty"`
	LoadedAt         time.Time         `json:"loadedAt"`
}

// Facets：筛选控件内容
type Facets struct {
	Years    []string `json:"years"`
	Villages []string `json:"villages"`
}

// Session：一个地图会话
// 约束：除 cache/loader（自身并发安全）外的字段受 mu 保护；Init 在锁外完成 I/O，最后一次性替换状态
type Session struct {
	ID string

	mu       sync.RWMutex
	src      Source
	opts     Options
	log      *slog.Logger
	cfg      *config.MapConfig
	viewport Viewport
	engine   *marker.Engine
	ctrl     *filter.Controller
	// cache 与 loader 构造后不再替换
	cache    *geo.Cache
	loader   *geo.Loader
	unified  *geo.Boundary
	facets   Facets
	stats    Stats
	last     filter.Outcome
	search   *SearchResult

	loading        bool
	ready          bool
	showBoundaries bool
	flash          *Flash
}

func NewSession(src Source, opts Options) *Session {
	if opts.FlashTTL <= 0 {
		opts.FlashTTL = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	id := uuid.NewString()
	cache := geo.NewCache()
	return &Session{
		ID:             id,
		src:            src,
		opts:           opts,
		log:            logger.For("view").With("session", id),
		viewport:       defaultViewport(),
		engine:         marker.NewEngine(nil),
		cache:          cache,
		loader:         geo.NewLoader(src, cache, opts.BoundaryConcurrency),
		showBoundaries: true,
	}
}

// Stage：初始化阶段
type Stage string

const (
	StageConfig     Stage = "config"
	StageViewport   Stage = "viewport"
	StageGroupings  Stage = "groupings"
	StageSheet      Stage = "sheet"
	StagePlaces     Stage = "places"
	StageRender     Stage = "render"
	StageFacets     Stage = "facets"
	StageBoundaries Stage = "boundaries"
	StageReady      Stage = "ready"
)

// StageError：初始化在某阶段中止
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// UserMessage：展示给用户的统一错误文案
func UserMessage(err error) string {
	return fmt.Sprintf("Failed to load map data: %v. Please try again later.", err)
}

// Init：按阶段加载并渲染
// 背景：配置或表格失败即中止并提示；设施与边界失败只记录日志
// 约束：无论成功与否，返回时 loading 均已清除；失败时保留上一次成功的状态
func (s *Session) Init(ctx context.Context) (err error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	started := time.Now()

	defer func() {
		s.mu.Lock()
		s.loading = false
		if err != nil {
			s.setFlashLocked(UserMessage(err))
		}
		s.mu.Unlock()
		if err != nil {
			metrics.SessionInitTotal.WithLabelValues("fail").Inc()
			s.log.Error("session_init_failed", "err", err, "dur_ms", time.Since(started).Milliseconds())
			return
		}
		metrics.SessionInitTotal.WithLabelValues("ok").Inc()
		s.log.Info("session_ready", "dur_ms", time.Since(started).Milliseconds())
	}()

	fail := func(stage Stage, e error) error { return &StageError{Stage: stage, Err: e} }

	cfg, e := s.src.FetchConfig(ctx)
	if e != nil {
		return fail(StageConfig, e)
	}
	if cfg == nil || len(cfg.Years) == 0 {
		return fail(StageConfig, fmt.Errorf("%w: no years", config.ErrInvalidMapConfig))
	}

	vp := defaultViewport()
	extent := geo.Bounds{}
	if cfg.ValidBounds() {
		extent = geo.FromPairs(cfg.MapBounds)
		vp.FitBounds(extent)
	} else {
		s.log.Warn("map_bounds_invalid", "bounds", cfg.MapBounds)
	}

	engine := marker.NewEngine(cfg.Years)
	// 刷新时保留用户设置的年份不透明度
	s.mu.RLock()
	prev := s.engine
	s.mu.RUnlock()
	if prev != nil {
		for y, v := range prev.Opacities() {
			engine.SetOpacity(y, v)
		}
	}

	st, projects, e := loadSheet(ctx, s.src)
	if e != nil {
		return fail(StageSheet, e)
	}

	places, e := s.src.FetchPlaces(ctx)
	if e != nil {
		s.log.Warn("place_fetch_failed", "err", e)
		st.PlacesError = e.Error()
		places = nil
	}
	st.Places = len(places)

	ctrl := filter.New(projects, places, s.opts.Villages, extent)
	last := ctrl.ApplyFilters(engine, nil, &vp)

	facets := Facets{Years: ctrl.YearFacet(), Villages: ctrl.VillageFacet()}

	// 边界缓存与加载器在会话生命周期内不替换，文件监听的重载总是落在当前缓存上
	loader := s.loader
	rep := loader.LoadAll(ctx, cfg.DesaIDs)
	pruneBoundaries(s.cache, cfg.DesaIDs)
	st.BoundariesLoaded = rep.Loaded
	if len(rep.Failed) > 0 {
		st.BoundariesFailed = make(map[string]string, len(rep.Failed))
		for id, fe := range rep.Failed {
			st.BoundariesFailed[id] = fe.Error()
		}
	}
	var unified *geo.Boundary
	if s.opts.NumberedBoundaries > 0 {
		if unified, e = loader.LoadNumbered(ctx, s.opts.NumberedBoundaries); e != nil {
			s.log.Warn("boundary_numbered_failed", "err", e)
		}
	}
	if e := ctx.Err(); e != nil {
		return fail(StageBoundaries, e)
	}
	st.LoadedAt = s.opts.Now()

	s.mu.Lock()
	s.cfg = cfg
	s.viewport = vp
	s.engine = engine
	s.ctrl = ctrl
	s.unified = unified
	s.facets = facets
	s.stats = st
	s.last = last
	s.search = nil
	s.ready = true
	s.flash = nil
	s.mu.Unlock()
	return nil
}

func loadSheet(ctx context.Context, src Source) (Stats, []record.ProjectRecord, error) {
	raw, err := src.FetchSheet(ctx)
	if err != nil {
		return Stats{}, nil, err
	}
	res, err := parseSheet(raw)
	if err != nil {
		return Stats{}, nil, err
	}
	projects, err := record.ProjectsFromSheet(res)
	if err != nil {
		return Stats{}, nil, err
	}
	return Stats{
		Delimiter: string(res.Delimiter),
		Fallback:  res.Fallback,
		Rows:      len(res.Rows),
		Dropped:   res.Dropped,
	}, projects, nil
}

// Run：按间隔重新初始化，ctx 结束时返回
func (s *Session) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Init(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("session_refresh_failed", "err", err)
			}
		}
	}
}

func (s *Session) setFlashLocked(msg string) {
	s.flash = &Flash{Message: msg, Expires: s.opts.Now().Add(s.opts.FlashTTL)}
}

// currentFlashLocked：过期的提示视为已消失
func (s *Session) currentFlashLocked() *Flash {
	if s.flash == nil || !s.opts.Now().Before(s.flash.Expires) {
		return nil
	}
	f := *s.flash
	return &f
}

// DismissFlash：手动关闭提示
func (s *Session) DismissFlash() {
	s.mu.Lock()
	s.flash = nil
	s.mu.Unlock()
}

func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) Config() *config.MapConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Session) Facets() Facets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facets
}

// Boundary：已缓存的村界
func (s *Session) Boundary(id string) (*geo.Boundary, bool) {
	s.mu.RLock()
	unified := s.unified
	s.mu.RUnlock()
	if id == geo.UnifiedID && unified != nil {
		return unified, true
	}
	return s.cache.Get(id)
}

// VillageBounds：村名 -> 缓存边界的矩形
func (s *Session) VillageBounds(name string) (geo.Bounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctrl == nil {
		return geo.Bounds{}, false
	}
	return s.ctrl.TargetBounds(filter.Selection{Village: name}, s.cache)
}

// ReloadBoundary：重新加载单个边界（文件变更时），后写覆盖
func (s *Session) ReloadBoundary(ctx context.Context, id string) error {
	_, err := s.loader.Load(ctx, id)
	return err
}

// ForgetBoundary：边界文件被删除时移出缓存
func (s *Session) ForgetBoundary(id string) {
	s.cache.Delete(id)
}

// pruneBoundaries：移除不在 DESA_IDS 中的缓存项
func pruneBoundaries(cache *geo.Cache, ids []string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for _, id := range cache.IDs() {
		if !keep[id] {
			cache.Delete(id)
		}
	}
}

// Clusters：当前可见标记按 geohash 聚合
func (s *Session) Clusters(kind marker.Kind, precision int) []marker.Cluster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Layer(kind).Clusters(precision)
}
