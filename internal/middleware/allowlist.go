package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// 文档注释：来源地址白名单
// 背景：守护进程的 HTTP 接口默认只对本机开放（/fix 可改变系统时区）；容器或旁路部署时可放开到指定网段。
// 约束：
// 1) 条目可为单 IP 或 CIDR（v4/v6），非法条目跳过并告警；
// 2) 列表为空表示不限制；
// 3) 来源以 RemoteAddr 为准，不信任任何转发头。
type Allowlist struct {
	l     *slog.Logger
	nets  []*net.IPNet
	empty bool
}

// NewAllowlist 解析逗号分隔的条目，例如 "127.0.0.1,::1,10.0.0.0/8"
func NewAllowlist(entries string, l *slog.Logger) *Allowlist {
	a := &Allowlist{l: l}
	for _, p := range strings.Split(entries, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				l.Warn("allowlist_skip", "entry", p)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			a.nets = append(a.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			l.Warn("allowlist_skip", "entry", p, "err", err)
			continue
		}
		a.nets = append(a.nets, n)
	}
	a.empty = len(a.nets) == 0
	return a
}

// Allowed 判断来源 IP 是否在白名单内
func (a *Allowlist) Allowed(ip net.IP) bool {
	if a.empty {
		return true
	}
	if ip == nil {
		return false
	}
	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (a *Allowlist) Wrap(next http.Handler) http.Handler {
	if a.empty {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		if !a.Allowed(ip) {
			a.l.Debug("allowlist_block", "remote", r.RemoteAddr)
			w.Header().Set("content-type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// remoteIP：RemoteAddr 可能包含端口
func remoteIP(r *http.Request) net.IP {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}
