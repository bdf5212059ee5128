package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CSP：地图页面需要的来源（Leaflet CDN、OSM 瓦片）
var cspDirectives = [][2]string{
	{"default-src", "'self'"},
	{"script-src", "'self' 'unsafe-inline' unpkg.com cdnjs.cloudflare.com"},
	{"style-src", "'self' 'unsafe-inline' unpkg.com cdnjs.cloudflare.com"},
	{"img-src", "'self' data: blob: *.tile.openstreetmap.org"},
	{"base-uri", "'self'"},
	{"font-src", "'self' https: data:"},
	{"form-action", "'self'"},
	{"frame-ancestors", "'self'"},
	{"object-src", "'none'"},
}

// ContentSecurityPolicy：connectSrc 追加到 connect-src（'self' 之后）
func ContentSecurityPolicy(connectSrc []string) string {
	parts := make([]string, 0, len(cspDirectives)+1)
	for _, d := range cspDirectives {
		parts = append(parts, d[0]+" "+d[1])
	}
	parts = append(parts, "connect-src "+strings.Join(append([]string{"'self'"}, connectSrc...), " "))
	return strings.Join(parts, "; ")
}

// SecurityHeaders：常用安全响应头
func SecurityHeaders(connectSrc []string) func(http.Handler) http.Handler {
	csp := ContentSecurityPolicy(connectSrc)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("X-DNS-Prefetch-Control", "off")
			next.ServeHTTP(w, r)
		})
	}
}

// CORS：origins 含 "*" 时允许任意来源
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", AdminTokenHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         600,
	})
	return c.Handler
}
