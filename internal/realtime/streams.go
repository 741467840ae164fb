package realtime

import "strings"

// Named realtime streams.
const (
	StreamNotifications   = "notifications"
	StreamRecommendations = "recommendations"
)

// KnownStreams lists every stream a client may subscribe to.
func KnownStreams() map[string]struct{} {
	return map[string]struct{}{
		StreamNotifications:   {},
		StreamRecommendations: {},
	}
}

// ParseStreams normalises stream names. Each value may hold a comma separated list;
// blanks and duplicates are dropped and order is preserved.
func ParseStreams(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			stream := normalizeStream(part)
			if stream == "" {
				continue
			}
			if _, dup := seen[stream]; dup {
				continue
			}
			seen[stream] = struct{}{}
			out = append(out, stream)
		}
	}
	return out
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
