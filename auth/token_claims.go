package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The gateway never verifies access-token signatures; the backend issued the
// token and is the only party that consumes it. Claims are read unverified
// purely to derive expiry and permission hints.

func tokenExpClaim(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func tokenPermissions(accessToken string) []string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	raw, ok := claims["permissions"].([]any)
	if !ok {
		return nil
	}
	permissions := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			permissions = append(permissions, s)
		}
	}
	return permissions
}
