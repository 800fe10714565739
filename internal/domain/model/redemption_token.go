package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenStatus is the lifecycle state of a redemption token.
// A token leaves StatusIssued exactly once; the terminal states are
// mutually exclusive.
type TokenStatus string

const (
	TokenStatusIssued   TokenStatus = "issued"
	TokenStatusConsumed TokenStatus = "consumed"
	TokenStatusExpired  TokenStatus = "expired"
	TokenStatusVoided   TokenStatus = "voided"
)

// RedemptionToken is a short-lived, single-use proof that a specific
// member may claim a specific entitlement. The Code is what scanning
// clients present; the expiry horizon is minutes and independent of
// the entitlement's own validity window.
type RedemptionToken struct {
	ID            string
	Code          string
	MemberID      string
	EntitlementID string
	Status        TokenStatus
	// PointsDebited records what the ledger was charged at issuance,
	// so an expiry refund (when that policy is enabled) is exact.
	PointsDebited int64
	IssuedAt      time.Time
	ExpiresAt     time.Time

	// Consumption record; set exactly once on the issued -> consumed transition.
	ConsumedAt     *time.Time
	ConsumedBy     *string
	ConsumedOutlet *string
}

func NewRedemptionToken(code, memberID, entitlementID string, debited int64, now time.Time, ttl time.Duration) *RedemptionToken {
	return &RedemptionToken{
		ID:            uuid.NewString(),
		Code:          code,
		MemberID:      memberID,
		EntitlementID: entitlementID,
		Status:        TokenStatusIssued,
		PointsDebited: debited,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
}

// ExpiredAt reports whether the token's hard expiry has passed at the
// given instant. The verifier's clock is authoritative; client-side
// countdowns are display only.
func (t *RedemptionToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Terminal reports whether the token has left the issued state.
func (t *RedemptionToken) Terminal() bool { return t.Status != TokenStatusIssued }
