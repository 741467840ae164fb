package recommendations

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned by ParseKind for unsupported recommendation kinds.
var ErrUnknownKind = errors.New("recommendations: unknown kind")

// Kind partitions the cache namespace per product surface.
type Kind string

const (
	KindAnalytics Kind = "analytics"
	KindDashboard Kind = "dashboard"
	KindNutrition Kind = "nutrition"
	KindGoals     Kind = "goals"
)

var knownKinds = []Kind{KindAnalytics, KindDashboard, KindNutrition, KindGoals}

// Kinds returns every supported kind.
func Kinds() []Kind {
	out := make([]Kind, len(knownKinds))
	copy(out, knownKinds)
	return out
}

// ParseKind normalises and validates a kind received from the outside world.
func ParseKind(raw string) (Kind, error) {
	candidate := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, kind := range knownKinds {
		if candidate == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Key identifies a single cache row.
type Key struct {
	UserID string
	Kind   Kind
}

// Validate reports whether the key can address a row.
func (k Key) Validate() error {
	if strings.TrimSpace(k.UserID) == "" {
		return errors.New("recommendations: user id is required")
	}
	if _, err := ParseKind(string(k.Kind)); err != nil {
		return err
	}
	return nil
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.UserID
}
