package app

import (
	"strings"
	"time"

	"github.com/charlesng35/longevity/internal/auth"
)

const maxJWTLeeway = 5 * time.Minute

// JWTServiceConfig maps the auth section onto auth.JWTConfig. TTL falls back to
// auth.DefaultAccessTokenTTL and leeway is capped at five minutes.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}
	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		Audience:       strings.TrimSpace(c.JWT.Audience),
		AccessTokenTTL: ttl,
		Leeway:         min(c.JWT.Leeway, maxJWTLeeway),
	}
}
