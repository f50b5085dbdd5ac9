package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

type Claims struct {
	AccountID string `json:"uid"`
	Role      string `json:"role"`
	Type      string `json:"typ"` // "access" | "refresh"
	jwt.RegisteredClaims
}

func (tm *TokenManager) GeneratePair(accountID, role string) (access string, refresh string, accessExp time.Time, err error) {
	now := time.Now()

	make := func(typ string, ttl time.Duration) (string, time.Time, error) {
		claims := Claims{
			AccountID: accountID,
			Role:      role,
			Type:      typ,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tm.issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
		}
		secret := tm.accessSecret
		if typ == "refresh" {
			secret = tm.refreshSecret
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		return s, claims.ExpiresAt.Time, err
	}

	access, accessExp, err = make("access", tm.accessTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, _, err = make("refresh", tm.refreshTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, accessExp, nil
}

// ParseAny tries the token as access first, then refresh; the second return
// reports which kind matched.
func (tm *TokenManager) ParseAny(tokenStr string) (*Claims, bool, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return tm.accessSecret, nil
	})
	if err == nil && claims.Type == "access" {
		return claims, false, nil
	}

	claims = &Claims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return tm.refreshSecret, nil
	})
	if err == nil && claims.Type == "refresh" {
		return claims, true, nil
	}
	return nil, false, errors.New("invalid token")
}
