package apiclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeriveExpiry returns the expiry instant for an access token. The server's
// explicit expiresAt wins; when it is absent the exp claim of the JWT is
// used instead. The signature is not verified here: the server remains the
// authority, this value only drives proactive refresh scheduling.
func DeriveExpiry(accessToken string, expiresAt time.Time) time.Time {
	if !expiresAt.IsZero() {
		return expiresAt
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
