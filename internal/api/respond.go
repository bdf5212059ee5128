package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"paman-dede/internal/view"
)

// writeJSON：统一 JSON 输出；会话结果随数据刷新变化，不允许缓存
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody：{"error","details"}，与原有服务端一致
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// writeSessionError：会话未就绪 -> 503，其余 -> 500
func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, view.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, "Map data is not ready", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "Something broke!", err.Error())
}
