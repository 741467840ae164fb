package realtime

import (
	"net"
	"net/url"
	"strings"
)

// originPolicy accepts same-host handshakes, loopback development servers and an allow-list.
type originPolicy map[string]struct{}

func newOriginPolicy(origins []string) originPolicy {
	policy := make(originPolicy, len(origins))
	for _, origin := range origins {
		if host := originHost(origin); host != "" {
			policy[host] = struct{}{}
		}
	}
	return policy
}

func (p originPolicy) allows(origin, requestHost string) bool {
	if strings.TrimSpace(origin) == "" {
		// non-browser clients do not send an Origin header
		return true
	}
	host := originHost(origin)
	if host == "" {
		return false
	}
	if _, ok := p[host]; ok {
		return true
	}
	return host == originHost(requestHost) || isLoopback(host)
}

// originHost lowercases the host part of an origin URL or host:port pair.
func originHost(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.Contains(value, "://") {
		parsed, err := url.Parse(value)
		if err != nil {
			return ""
		}
		return strings.ToLower(parsed.Hostname())
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(value)
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return host == "localhost"
}
