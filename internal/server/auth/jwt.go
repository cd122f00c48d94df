// Package auth issues and verifies the HS256 bearer tokens that identify a
// caller. Only the caller id is used by the catalog.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

// Claims carries the standard claims plus the caller identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Name   string `json:"name,omitempty"`
}

func GenerateToken(caller models.Caller, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: caller.ID,
		Name:   caller.Name,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseCaller verifies tokenString. Expired tokens return
// common.ErrTokenExpired, anything else invalid common.ErrInvalidToken.
func ParseCaller(tokenString string, secretKey []byte) (*models.Caller, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, common.ErrTokenExpired
	}
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return &models.Caller{ID: claims.UserID, Name: claims.Name}, nil
}
