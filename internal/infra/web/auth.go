// File: internal/infra/web/auth.go
package web

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"loyalty-redemption-core/internal/config"
	"loyalty-redemption-core/internal/domain/model"
)

// ===== Credential primitives =====
//
// Members and staff terminals carry separate HMAC secrets so a leaked
// member credential can never finalize tokens, and vice versa.

var errInvalidCredential = errors.New("invalid credential")

type MemberClaims struct {
	Class string `json:"class"`
	jwt.RegisteredClaims
}

type StaffClaims struct {
	OutletID string `json:"outlet_id"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	memberSecret []byte
	staffSecret  []byte
	ttl          time.Duration
}

func NewAuthManager(cfg config.AuthConfig) *AuthManager {
	return &AuthManager{
		memberSecret: []byte(cfg.MemberSecret),
		staffSecret:  []byte(cfg.StaffSecret),
		ttl:          cfg.TTL,
	}
}

func (a *AuthManager) MintMember(memberID string, class model.MemberClass) (string, error) {
	now := time.Now()
	claims := MemberClaims{
		Class: string(class),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.memberSecret)
}

func (a *AuthManager) VerifyMember(token string) (*MemberClaims, error) {
	claims := &MemberClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidCredential
		}
		return a.memberSecret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, errInvalidCredential
	}
	return claims, nil
}

func (a *AuthManager) MintStaff(actorID, outletID string) (string, error) {
	now := time.Now()
	claims := StaffClaims{
		OutletID: outletID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.staffSecret)
}

func (a *AuthManager) VerifyStaff(token string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidCredential
		}
		return a.staffSecret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, errInvalidCredential
	}
	return claims, nil
}

// bearerToken pulls the credential from an Authorization header or,
// for websocket clients that cannot set headers, the token query param.
func bearerToken(authHeader, queryToken string) string {
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return queryToken
}
