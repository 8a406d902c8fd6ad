package registry

import (
	"net"
	"net/url"
	"strings"
)

const (
	// Cross-chain route aggregation API.
	RubicBaseURL    = "https://api.rubic.exchange/api/v1"
	RubicTradesPath = "/cross-chain/trades"
)

// IsAllowedBridgeURL accepts the canonical aggregation host over https, or a
// loopback endpoint for local development and tests. Empty means default.
func IsAllowedBridgeURL(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if host := strings.ToLower(u.Hostname()); host == "localhost" || isLoopbackIP(host) {
		return scheme == "http" || scheme == "https"
	}
	canonical, _ := url.Parse(RubicBaseURL)
	return scheme == "https" &&
		strings.EqualFold(u.Hostname(), canonical.Hostname()) &&
		portOf(u) == portOf(canonical)
}

func isLoopbackIP(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func portOf(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if strings.EqualFold(u.Scheme, "http") {
		return "80"
	}
	return "443"
}
