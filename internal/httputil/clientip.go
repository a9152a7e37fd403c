// Package httputil holds request helpers shared by the HTTP layer.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address a request came from. Behind a trusted proxy
// the Forwarded (RFC 7239), X-Forwarded-For and X-Real-IP headers are
// consulted in that order; otherwise only RemoteAddr is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedFor(r.Header.Get("Forwarded")); ip != "" {
			return ip
		}
		if ip := firstHop(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return stripPort(r.RemoteAddr)
}

func firstHop(list string) string {
	first, _, _ := strings.Cut(list, ",")
	return strings.TrimSpace(first)
}

// forwardedFor extracts the for= parameter of the first Forwarded element.
func forwardedFor(header string) string {
	element, _, _ := strings.Cut(header, ",")
	for _, pair := range strings.Split(element, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(key, "for") {
			continue
		}
		value = strings.Trim(value, `"`)
		if strings.HasPrefix(value, "[") {
			// [2001:db8::1]:4711
			if end := strings.IndexByte(value, ']'); end > 0 {
				return value[1:end]
			}
			return ""
		}
		return stripPort(value)
	}
	return ""
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
