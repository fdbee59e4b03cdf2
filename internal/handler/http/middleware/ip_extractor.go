// Package middleware holds the cross-cutting HTTP middleware of the API:
// CORS, per-IP rate limiting, and the client IP extraction strategies the
// limiter depends on.
package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
)

// IPExtractor resolves the client IP of a request. Implementations choose
// between the raw connection address (spoof-proof) and proxy headers
// (needed behind a reverse proxy, spoofable from anywhere else).
type IPExtractor interface {
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor uses the TCP connection address. This is the default:
// it cannot be spoofed by the client.
type RemoteAddrExtractor struct{}

func (e *RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig names the reverse proxies whose forwarding headers may
// be believed. With Enabled false all header-based extraction is off.
type TrustedProxyConfig struct {
	Enabled      bool
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether remoteAddr belongs to a configured proxy range.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// LoadTrustedProxyConfig reads RATE_LIMIT_TRUST_PROXY and
// RATE_LIMIT_TRUSTED_PROXIES (comma-separated IPs or CIDRs). Invalid
// configuration is an error rather than a silent fallback: a wrong proxy
// list means rate limiting keys on attacker-controlled headers.
func LoadTrustedProxyConfig() (*TrustedProxyConfig, error) {
	enabled := os.Getenv("RATE_LIMIT_TRUST_PROXY") == "true"
	config := &TrustedProxyConfig{
		Enabled:      enabled,
		AllowedCIDRs: []netip.Prefix{},
	}
	if !enabled {
		return config, nil
	}

	proxiesStr := strings.TrimSpace(os.Getenv("RATE_LIMIT_TRUSTED_PROXIES"))
	if proxiesStr == "" {
		return nil, fmt.Errorf("RATE_LIMIT_TRUST_PROXY is enabled but RATE_LIMIT_TRUSTED_PROXIES is empty")
	}

	for _, proxyStr := range strings.Split(proxiesStr, ",") {
		proxyStr = strings.TrimSpace(proxyStr)
		if proxyStr == "" {
			continue
		}

		prefix, err := netip.ParsePrefix(proxyStr)
		if err != nil {
			// 単一 IP は /32 (IPv4) / /128 (IPv6) として扱う
			ip, ipErr := netip.ParseAddr(proxyStr)
			if ipErr != nil {
				return nil, fmt.Errorf("invalid IP or CIDR %q in RATE_LIMIT_TRUSTED_PROXIES", proxyStr)
			}
			bits := 128
			if ip.Is4() {
				bits = 32
			}
			prefix = netip.PrefixFrom(ip, bits)
		}
		config.AllowedCIDRs = append(config.AllowedCIDRs, prefix)
	}

	if len(config.AllowedCIDRs) == 0 {
		return nil, fmt.Errorf("RATE_LIMIT_TRUST_PROXY is enabled but no valid proxies found in RATE_LIMIT_TRUSTED_PROXIES")
	}
	return config, nil
}

// TrustedProxyExtractor believes X-Forwarded-For / X-Real-IP only when the
// connection itself comes from a trusted proxy, falling back to RemoteAddr
// otherwise. Untrusted senders carrying those headers are logged; believing
// them would let any client rotate its apparent IP past the limiter.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

func NewTrustedProxyExtractor(config TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{config: config}
}

func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled {
		return extractIPFromAddr(r.RemoteAddr)
	}

	if !e.config.IsTrusted(r.RemoteAddr) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			slog.Warn("untrusted proxy attempting to set X-Forwarded-For",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_forwarded_for", xff),
			)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			slog.Warn("untrusted proxy attempting to set X-Real-IP",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_real_ip", xri),
			)
		}
		return extractIPFromAddr(r.RemoteAddr)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip, nil
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String(), nil
		}
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr strips the port from "host:port", accepting bare IPs
// and bracketed IPv6 forms.
func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		if ip := net.ParseIP(addr); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return host, nil
}

// parseFirstIP returns the first valid IP in a comma-separated list, the
// X-Forwarded-For format "client, proxy1, proxy2".
func parseFirstIP(s string) string {
	if idx := strings.IndexByte(s, ','); idx != -1 {
		s = s[:idx]
	}
	if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
		return ip.String()
	}
	return ""
}
