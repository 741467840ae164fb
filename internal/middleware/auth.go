package middleware

import (
	stdErrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	iauth "github.com/charlesng35/longevity/internal/auth"
	"github.com/charlesng35/longevity/pkg/errors"
	"github.com/charlesng35/longevity/pkg/metrics"
	"github.com/charlesng35/longevity/pkg/response"
)

// Gin context keys set by Auth.
const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// Auth requires a valid bearer token and stores its claims and user id on the context.
// Every rejection is a 401 with an RFC 6750 challenge.
func Auth(verifier *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, "missing", `Bearer`)
			return
		}

		claims, err := verifier.ValidateAccessToken(token)
		switch {
		case stdErrors.Is(err, jwt.ErrTokenExpired):
			reject(c, "expired", `Bearer error="invalid_token", error_description="token expired"`)
			return
		case err != nil:
			reject(c, "failure", `Bearer error="invalid_token"`)
			return
		}

		metrics.AuthAttempts.WithLabelValues("success").Inc()
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.EffectiveUserID())
		c.Next()
	}
}

func reject(c *gin.Context, result, challenge string) {
	metrics.AuthAttempts.WithLabelValues(result).Inc()
	c.Header("WWW-Authenticate", challenge)
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}

// ClaimsFrom returns the claims Auth stored on c.
func ClaimsFrom(c *gin.Context) (*iauth.Claims, bool) {
	value, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*iauth.Claims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
