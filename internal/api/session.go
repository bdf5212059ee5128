package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"paman-dede/internal/filter"
	"paman-dede/internal/geo"
	"paman-dede/internal/marker"
	"paman-dede/internal/view"
)

// defaultPrecision：geohash 6 位约 1.2km，单个村庄可分成若干格
const defaultPrecision = 6

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Status())
}

func (h *handlers) facets(w http.ResponseWriter, r *http.Request) {
	if !h.Session.Ready() {
		writeSessionError(w, view.ErrNotReady)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Facets())
}

// selection：?year=2021&year=2022&desa=Krejengan；未给年份时取全部年份
func (h *handlers) selection(r *http.Request) filter.Selection {
	q := r.URL.Query()
	var years []string
	for _, v := range q["year"] {
		for _, y := range strings.Split(v, ",") {
			if y = strings.TrimSpace(y); y != "" {
				years = append(years, y)
			}
		}
	}
	sel := h.Session.DefaultSelection()
	if len(years) > 0 {
		sel = filter.NewSelection(years, "")
	}
	sel.Village = strings.TrimSpace(q.Get("desa"))
	return sel
}

// opacity：?opacity=2021:0.4&opacity=2022:1，每项为 年份:不透明度
func opacity(r *http.Request) (map[string]float64, error) {
	var out map[string]float64
	for _, v := range r.URL.Query()["opacity"] {
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			i := strings.LastIndex(item, ":")
			if i < 0 {
				return nil, fmt.Errorf("missing ':' in %q", item)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(item[i+1:]), 64)
			if err != nil || math.IsNaN(f) {
				return nil, fmt.Errorf("bad value in %q", item)
			}
			if out == nil {
				out = make(map[string]float64)
			}
			out[strings.TrimSpace(item[:i])] = f
		}
	}
	return out, nil
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	op, err := opacity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid opacity", err.Error())
		return
	}
	f, err := h.Session.PreviewWithOpacity(h.selection(r), op)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	hits, err := h.Session.Search(term)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view.SearchResult{Term: term, Hits: hits, NoResults: len(hits) == 0})
}

// clusters：kind=place 聚合设施，否则按筛选条件聚合项目
func (h *handlers) clusters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	precision := defaultPrecision
	if s := q.Get("precision"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid precision", s)
			return
		}
		precision = n
	}
	if marker.Kind(q.Get("kind")) == marker.KindPlace {
		if !h.Session.Ready() {
			writeSessionError(w, view.ErrNotReady)
			return
		}
		writeJSON(w, http.StatusOK, h.Session.Clusters(marker.KindPlace, precision))
		return
	}
	cs, err := h.Session.PreviewClusters(h.selection(r), precision)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

type villageEntry struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Loaded bool   `json:"loaded"`
}

// villages：查找表中的村庄及其边界是否已加载
func (h *handlers) villages(w http.ResponseWriter, r *http.Request) {
	names := h.Villages.Names()
	out := make([]villageEntry, 0, len(names))
	for _, n := range names {
		code, _ := h.Villages.Code(n)
		_, loaded := h.Session.Boundary(code)
		out = append(out, villageEntry{Name: n, Code: code, Loaded: loaded})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) villageBounds(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	b, ok := h.Session.VillageBounds(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Village boundary not available", name)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Village string     `json:"desa"`
		Bounds  geo.Bounds `json:"bounds"`
	}{name, b})
}

// boundary：会话缓存中的边界原文；支持统一图层 unified
func (h *handlers) boundary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, ok := h.Session.Boundary(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Not found", id)
		return
	}
	w.Header().Set("content-type", "application/geo+json")
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(b.Raw)
}

// reload：清空表格缓存后重新初始化会话；失败时保留上一次的数据
func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	if h.Source != nil && h.Source.Sheet != nil {
		h.Source.Sheet.Invalidate(r.Context())
	}
	if err := h.Session.Init(r.Context()); err != nil {
		h.log.Error("reload_error", "err", err)
		writeError(w, http.StatusInternalServerError, view.UserMessage(err), err.Error())
		return
	}
	h.log.Info("reload_ok", "session", h.Session.ID)
	writeJSON(w, http.StatusOK, h.Session.Status())
}
