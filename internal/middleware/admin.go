package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"paman-dede/internal/logger"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminGuard：管理接口保护（令牌 + 可选来源网段）
// 约束：token 为空时接口关闭（403）；allow 为空时不限来源；来源 IP 取 RemoteAddr
type AdminGuard struct {
	token  string
	allow  []*net.IPNet
	single map[string]struct{}
	l      *slog.Logger
}

// NewAdminGuard：allow 接受单个 IP 与 CIDR（v4/v6），无法解析的项忽略；l 为 nil 时使用进程日志
func NewAdminGuard(token string, allow []string, l *slog.Logger) *AdminGuard {
	if l == nil {
		l = logger.For("admin")
	}
	g := &AdminGuard{token: token, single: map[string]struct{}{}, l: l}
	for _, s := range allow {
		s = strings.TrimSpace(s)
		if _, n, err := net.ParseCIDR(s); err == nil {
			g.allow = append(g.allow, n)
			continue
		}
		if ip := net.ParseIP(s); ip != nil {
			g.single[ip.String()] = struct{}{}
			continue
		}
		l.Warn("admin_allow_invalid", "entry", s)
	}
	return g
}

func (g *AdminGuard) ipAllowed(remote string) bool {
	if len(g.allow) == 0 && len(g.single) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if _, ok := g.single[ip.String()]; ok {
		return true
	}
	for _, n := range g.allow {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (g *AdminGuard) tokenOK(r *http.Request) bool {
	got := r.Header.Get(AdminTokenHeader)
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(g.token)) == 1
}

func (g *AdminGuard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case g.token == "":
			writeError(w, http.StatusForbidden, "Admin endpoint disabled", "")
		case !g.ipAllowed(r.RemoteAddr):
			g.l.Warn("admin_denied", "ip", r.RemoteAddr, "reason", "address")
			writeError(w, http.StatusForbidden, "Forbidden", "")
		case !g.tokenOK(r):
			g.l.Warn("admin_denied", "ip", r.RemoteAddr, "reason", "token")
			writeError(w, http.StatusUnauthorized, "Unauthorized", "")
		default:
			next.ServeHTTP(w, r)
		}
	})
}
