// Package realip resolves the client address behind trusted reverse proxies.
// It is the single source of client identity for access logs and for
// IP-keyed rate limits.
package realip

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies decides whether forwarding headers may be honored.
type TrustedProxies struct {
	networks []*net.IPNet
}

// NewTrustedProxies builds a matcher from CIDRs or bare IPs.
// Entries that parse as neither are skipped.
func NewTrustedProxies(cidrs []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, entry := range cidrs {
		entry = strings.TrimSpace(entry)
		if _, network, err := net.ParseCIDR(entry); err == nil {
			tp.networks = append(tp.networks, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		tp.networks = append(tp.networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return tp
}

// IsTrusted reports whether ip is inside any trusted range.
func (tp *TrustedProxies) IsTrusted(ip net.IP) bool {
	for _, network := range tp.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetClientIP returns the originating client address. Forwarding headers
// are only consulted when the direct peer is a trusted proxy.
func (tp *TrustedProxies) GetClientIP(r *http.Request) net.IP {
	direct := parseRemoteAddr(r.RemoteAddr)
	if direct == nil || !tp.IsTrusted(direct) {
		return direct
	}

	// "client, proxy1, proxy2": first parseable entry wins.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
		return direct
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip
		}
	}
	return direct
}

// GetClientIPString is GetClientIP formatted for logs and limiter keys.
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	if tp == nil {
		if ip := parseRemoteAddr(r.RemoteAddr); ip != nil {
			return ip.String()
		}
		return "unknown"
	}
	ip := tp.GetClientIP(r)
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}

func parseRemoteAddr(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.ParseIP(addr)
	}
	return net.ParseIP(host)
}
