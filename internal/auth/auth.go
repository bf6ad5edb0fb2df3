// Package auth issues and validates the JWTs that identify users on the
// HTTP and websocket surfaces.
package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrAuthRequired is returned when no valid token accompanies a request.
var ErrAuthRequired = errors.New("authentication required")

func secret() []byte {
	s := os.Getenv("JWT_SECRET")
	if s == "" {
		s = "dev-secret"
	}
	return []byte(s)
}

// Claims carried in every session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// CreateToken signs a session token for the given user, valid for 7 days.
func CreateToken(userID uuid.UUID, username string) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the user identity it carries.
func ParseToken(tokenStr string) (uuid.UUID, string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret(), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", ErrAuthRequired
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrAuthRequired
	}
	return userID, claims.Username, nil
}
