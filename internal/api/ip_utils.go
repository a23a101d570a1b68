package api

import (
	"net"
	"net/http"
	"strings"
)

// 按顺序检查的反向代理头
var proxyHeaders = []string{
	"x-forwarded-for",
	"cf-connecting-ip",
	"x-real-ip",
	"x-client-ip",
	"x-edge-client-ip",
	"x-edgeone-ip",
}

// 文档注释：获取访问者 IP（用于 /position 定位）
// 背景：多层代理环境下优先常见反向代理头，其次 Forwarded，最后回退远端地址。
// 约束：不校验代理是否可信；部署在不受信任的链路前需由网关覆盖这些头。
func clientIP(r *http.Request) string {
	h := r.Header
	for _, name := range proxyHeaders {
		if v := h.Get(name); v != "" {
			return strings.TrimSpace(strings.Split(v, ",")[0])
		}
	}
	if v := h.Get("forwarded"); v != "" {
		if i := strings.Index(strings.ToLower(v), "for="); i >= 0 {
			y := strings.Trim(v[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\"[]")
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
