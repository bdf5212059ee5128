// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"net/http"

	"paman-dede/internal/backend"
	"paman-dede/internal/config"
	"paman-dede/internal/logger"
	"paman-dede/internal/middleware"
	"paman-dede/internal/view"
)

// Deps：路由依赖
// 约束：Source 提供 /config、/sheet-data、/place-data、/geojson；Session 提供会话结果；Admin 为 nil 时 /reload 关闭
type Deps struct {
	Source   *backend.Local
	Session  *view.Session
	Villages *config.VillageTable
	Admin    *middleware.AdminGuard
}

// BuildRoutes：构建并返回 API 路由，独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	h := &handlers{Deps: d, log: logger.For("api")}
	mux := http.NewServeMux()

	// 数据接口（前端与 map-check 的 Source 契约）
	mux.HandleFunc("GET /config", h.config)
	mux.HandleFunc("GET /sheet-data", h.sheetData)
	mux.HandleFunc("GET /place-data", h.placeData)
	mux.HandleFunc("GET /geojson/{file}", h.geojson)

	// 会话结果
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("GET /facets", h.facets)
	mux.HandleFunc("GET /view", h.view)
	mux.HandleFunc("GET /search", h.search)
	mux.HandleFunc("GET /clusters", h.clusters)
	mux.HandleFunc("GET /villages", h.villages)
	mux.HandleFunc("GET /villages/{name}/bounds", h.villageBounds)
	mux.HandleFunc("GET /boundaries/{id}", h.boundary)

	reload := http.Handler(http.HandlerFunc(h.reload))
	if d.Admin != nil {
		reload = d.Admin.Wrap(reload)
	} else {
		reload = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusForbidden, "Admin endpoint disabled", "")
		})
	}
	mux.Handle("POST /reload", reload)
	return mux
}
