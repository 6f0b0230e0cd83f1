package auth

import (
	"fmt"
	"time"

	"github.com/cafeline/api/internal/enum"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// Identity is the caller of an engine operation. It is passed explicitly
// into every call; nothing in the engine reads ambient user state.
type Identity struct {
	UserID uuid.UUID
	// CafeID is uuid.Nil for the platform role.
	CafeID uuid.UUID
	Role   enum.Role
	Status enum.UserStatus
}

// IsPlatform reports whether the identity may act across tenants.
func (id *Identity) IsPlatform() bool {
	return id != nil && id.Role == enum.RoleSuperAdmin
}

type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	CafeID uuid.UUID       `json:"cafe_id"`
	Role   enum.Role       `json:"role"`
	Status enum.UserStatus `json:"status"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into an engine identity.
func (c *Claims) Identity() *Identity {
	if c == nil {
		return nil
	}
	return &Identity{
		UserID: c.UserID,
		CafeID: c.CafeID,
		Role:   c.Role,
		Status: c.Status,
	}
}

func GenerateToken(secret string, id Identity) (string, error) {
	claims := Claims{
		UserID: id.UserID,
		CafeID: id.CafeID,
		Role:   id.Role,
		Status: id.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateRefreshToken(secret string, userID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(refreshTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}
