package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signingKey signs portal tokens. Overridden at startup from configuration;
// the default only exists so tests can run without wiring.
var signingKey = []byte("clinic_relay_dev_signing_key_2026")

// SetSigningKey replaces the token signing secret. Call once at startup,
// before any token is issued.
func SetSigningKey(key string) {
	signingKey = []byte(key)
}

// CustomClaims is the payload carried inside a portal JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed HS256 token for a portal account.
func GenerateToken(userID, email string, roles []string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "clinic-relay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken checks signature and expiration and returns the claims.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
