package tenants

import (
	"errors"
	"net"
	"strings"
)

var (
	// ErrInvalidHost is returned when a request carries no usable hostname.
	ErrInvalidHost = errors.New("invalid host")
	// ErrTenantNotConfigured is returned when no tenant owns the hostname.
	ErrTenantNotConfigured = errors.New("tenant not configured")
	// ErrTenantUnavailable is returned when the owning tenant is not ACTIVE.
	ErrTenantUnavailable = errors.New("tenant unavailable")
)

// NormalizeHost lowercases the raw Host value and strips the port, a leading
// "www." and any trailing dot so every variant maps to one cache key.
func NormalizeHost(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return "", ErrInvalidHost
	}
	if i := strings.IndexByte(host, ','); i >= 0 {
		// proxies may append hops to X-Forwarded-Host; the first one is the client's
		host = strings.TrimSpace(host[:i])
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")
	if host == "" || strings.ContainsAny(host, " /\\@") {
		return "", ErrInvalidHost
	}
	return host, nil
}
