package api

import (
	"errors"
	"log/slog"
	"net/http"

	"paman-dede/internal/backend"
	"paman-dede/internal/record"
)

type handlers struct {
	Deps
	log *slog.Logger
}

// config：每次请求按环境重新解析；格式错误只影响本端点
func (h *handlers) config(w http.ResponseWriter, r *http.Request) {
	mc, err := h.Source.FetchConfig(r.Context())
	if err != nil {
		h.log.Error("config_send_error", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to send config", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

// sheetData：原样转发表格文本
// 异常：未配置 SHEET_URL -> 500；上游失败 -> 502
func (h *handlers) sheetData(w http.ResponseWriter, r *http.Request) {
	b, err := h.Source.FetchSheet(r.Context())
	if err != nil {
		h.log.Error("sheet_fetch_error", "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrNoSheetURL) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, "Failed to fetch sheet data", err.Error())
		return
	}
	w.Header().Set("content-type", "text/plain; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(b)
}

func (h *handlers) placeData(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Source.FetchPlaces(r.Context())
	if err != nil {
		h.log.Error("place_fetch_error", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch place data", err.Error())
		return
	}
	if ps == nil {
		ps = []record.PlaceRecord{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// geojson：/geojson/{id}.geojson；缺失与非法标识都是 404
func (h *handlers) geojson(w http.ResponseWriter, r *http.Request) {
	id, ok := backend.IDFromPath(r.PathValue("file"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not found", "")
		return
	}
	b, err := h.Source.FetchBoundary(r.Context(), id)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found", id)
		return
	}
	if err != nil {
		h.log.Error("geojson_read_error", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to read boundary", err.Error())
		return
	}
	w.Header().Set("content-type", "application/geo+json")
	_, _ = w.Write(b)
}
