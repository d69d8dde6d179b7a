// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package tenantauth resolves a tenant identity from a bearer token,
// grounded on the teacher's internal/auth JWTManager
// (github.com/golang-jwt/jwt/v5, HMAC-SHA256). Spec §1 treats
// authentication as an external collaborator, so this is deliberately
// the thin contract-level stand-in the expansion calls for: enough to
// gate the HTTP surface behind a tenant id, not a full OIDC/zero-trust
// stack like the teacher's internal/auth package implements.
package tenantauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails to parse,
// verify or has expired.
var ErrInvalidToken = errors.New("tenantauth: invalid or expired token")

// Claims identifies the tenant and user a request is acting as.
type Claims struct {
	Tenant string `json:"tenant"`
	User   string `json:"user"`
	jwt.RegisteredClaims
}

// Manager issues and validates tenant bearer tokens.
type Manager struct {
	secret  []byte
	timeout time.Duration
}

// NewManager builds a Manager. secret must be non-empty; the teacher
// requires at least 32 bytes for production use and this carries the
// same requirement.
func NewManager(secret string, timeout time.Duration) (*Manager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("tenantauth: secret must be at least 32 characters, got %d", len(secret))
	}
	return &Manager{secret: []byte(secret), timeout: timeout}, nil
}

// IssueToken signs a bearer token for (tenant, user), valid for the
// manager's configured timeout.
func (m *Manager) IssueToken(tenant, user string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Tenant: tenant,
		User:   user,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("tenantauth: sign token: %w", err)
	}
	return signed, nil
}

// Authenticate parses and verifies tokenString, rejecting anything
// signed with an unexpected algorithm (algorithm-confusion guard, per
// the teacher's ValidateToken) or expired per the registered claims.
func (m *Manager) Authenticate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("tenantauth: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Tenant == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
