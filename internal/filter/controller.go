package filter

import (
	"log/slog"
	"strings"

	"paman-dede/internal/geo"
	"paman-dede/internal/logger"
	"paman-dede/internal/marker"
	"paman-dede/internal/record"
)

// Renderer：标记投影（marker.Engine）
type Renderer interface {
	RenderProjects([]record.ProjectRecord) int
	RenderPlaces([]record.PlaceRecord) int
}

// BoundsLookup：边界缓存（geo.Cache）
type BoundsLookup interface {
	Get(id string) (*geo.Boundary, bool)
}

// Viewport：地图视口
type Viewport interface {
	FitBounds(b geo.Bounds)
}

// Villages：村名 -> 行政代码（config.VillageTable）
type Villages interface {
	Code(name string) (string, bool)
	Names() []string
}

// Controller：持有规范化后的记录与当前筛选条件
// 约束：记录集合在构造后只读；设施不参与筛选
type Controller struct {
	projects []record.ProjectRecord
	places   []record.PlaceRecord
	villages Villages
	extent   geo.Bounds
	sel      Selection
	log      *slog.Logger
}

// New：默认选中数据中出现的全部年份，不限村庄
func New(projects []record.ProjectRecord, places []record.PlaceRecord, villages Villages, extent geo.Bounds) *Controller {
	c := &Controller{
		projects: projects,
		places:   places,
		villages: villages,
		extent:   extent,
		log:      logger.For("filter"),
	}
	c.sel = c.DefaultSelection()
	return c
}

func (c *Controller) Projects() []record.ProjectRecord { return c.projects }

func (c *Controller) Places() []record.PlaceRecord { return c.places }

func (c *Controller) Extent() geo.Bounds { return c.extent }

// YearKey：年份筛选使用的取值；空年份归入 marker.UnknownYear
func YearKey(year string) string {
	if y := strings.TrimSpace(year); y != "" {
		return y
	}
	return marker.UnknownYear
}

// YearFacet：数据中出现的年份（含坐标无效的行），自然序；空年份显示为 marker.UnknownYear，排在最后
func (c *Controller) YearFacet() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.projects {
		y := YearKey(p.Year)
		if seen[y] {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	SortNatural(out)
	return out
}

// VillageFacet：查找表村名与数据中出现的村名的并集，按字典序
// 约束：数据中的别名（如 "Kamal Kuning"）归并到查找表中的正式名称
func (c *Controller) VillageFacet() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, v)
	}
	canonical := make(map[string]string)
	if c.villages != nil {
		for _, v := range c.villages.Names() {
			if code, ok := c.villages.Code(v); ok {
				canonical[code] = v
			}
			add(v)
		}
	}
	for _, p := range c.projects {
		if code, ok := c.villageCode(p.Village); ok && canonical[code] != "" {
			continue
		}
		add(p.Village)
	}
	SortNatural(out)
	return out
}

func (c *Controller) villageCode(name string) (string, bool) {
	if c.villages == nil || strings.TrimSpace(name) == "" {
		return "", false
	}
	return c.villages.Code(name)
}

// sameVillage：两侧都能查到代码时按代码比较（别名与正式名称等价），否则按名称比较，不区分大小写
func (c *Controller) sameVillage(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return true
	}
	ca, okA := c.villageCode(a)
	cb, okB := c.villageCode(b)
	return okA && okB && ca == cb
}

func (c *Controller) DefaultSelection() Selection {
	return NewSelection(c.YearFacet(), "")
}

func (c *Controller) Selection() Selection { return c.sel.Clone() }

func (c *Controller) SetSelection(s Selection) { c.sel = s.Clone() }

// Query：按条件过滤项目，不改变任何状态
// 约束：年份命中（空年份按 YearKey）且（未选村庄 或 同一村庄）
func (c *Controller) Query(s Selection) []record.ProjectRecord {
	village := strings.TrimSpace(s.Village)
	out := make([]record.ProjectRecord, 0, len(c.projects))
	for _, p := range c.projects {
		if !s.Years[YearKey(p.Year)] {
			continue
		}
		if village != "" && !c.sameVillage(p.Village, village) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Outcome：一次 ApplyFilters 的结果
type Outcome struct {
	Matched  int        `json:"matched"`
	Projects int        `json:"projects"`
	Places   int        `json:"places"`
	Fitted   bool       `json:"fitted"`
	Bounds   geo.Bounds `json:"bounds"`
}

// ApplyFilters：按当前条件重绘项目，同时重绘全部设施，并请求视口适配
// 背景：选中村庄时按 村名 -> 代码 -> 边界缓存 定位
// 约束：村庄无代码或无边界时记录警告，视口保持不变
func (c *Controller) ApplyFilters(r Renderer, b BoundsLookup, vp Viewport) Outcome {
	filtered := c.Query(c.sel)
	out := Outcome{Matched: len(filtered)}
	out.Projects = r.RenderProjects(filtered)
	out.Places = r.RenderPlaces(c.places)
	out.Bounds, out.Fitted = c.TargetBounds(c.sel, b)
	if out.Fitted && vp != nil {
		vp.FitBounds(out.Bounds)
	}
	return out
}

// TargetBounds：条件对应的视口范围；false 表示保持当前视口
func (c *Controller) TargetBounds(s Selection, b BoundsLookup) (geo.Bounds, bool) {
	village := strings.TrimSpace(s.Village)
	if village == "" {
		if c.extent.IsEmpty() {
			return geo.Bounds{}, false
		}
		return c.extent, true
	}
	if c.villages == nil {
		c.log.Warn("village_bounds_missing", "desa", village, "reason", "no_lookup")
		return geo.Bounds{}, false
	}
	code, ok := c.villages.Code(village)
	if !ok {
		c.log.Warn("village_bounds_missing", "desa", village, "reason", "unknown_village")
		return geo.Bounds{}, false
	}
	if b == nil {
		c.log.Warn("village_bounds_missing", "desa", village, "code", code, "reason", "no_cache")
		return geo.Bounds{}, false
	}
	bd, ok := b.Get(code)
	if !ok || bd.Bounds.IsEmpty() {
		c.log.Warn("village_bounds_missing", "desa", village, "code", code, "reason", "not_loaded")
		return geo.Bounds{}, false
	}
	return bd.Bounds, true
}
