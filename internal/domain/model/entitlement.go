package model

import (
	"time"
)

// EntitlementKind distinguishes in-house vouchers from partner offers.
type EntitlementKind string

const (
	EntitlementVoucher      EntitlementKind = "voucher"
	EntitlementPartnerOffer EntitlementKind = "partner_offer"
)

// Entitlement is a redeemable voucher or partner offer definition.
// It is read as an immutable snapshot during a redemption attempt;
// admin edits never retroactively change an admitted decision.
type Entitlement struct {
	ID         string
	Title      string
	Kind       EntitlementKind
	PointsCost int64
	// CashValue is the informational cash-equivalent value in cents.
	CashValue int64

	// Validity window of the entitlement itself. Nil bounds mean open-ended.
	ValidFrom  *time.Time
	ValidUntil *time.Time
	// ValidDays is the usable window in days after redemption (0 = none).
	ValidDays int

	// Caps; 0 means unlimited.
	LifetimeCap int
	DailyCap    int
	GlobalCap   int

	// Targets lists the membership classes that may redeem.
	// Empty means every class is targeted.
	Targets []MemberClass

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithinWindow reports whether the entitlement's own validity window
// covers the given instant.
func (e *Entitlement) WithinWindow(now time.Time) bool {
	if e.ValidFrom != nil && now.Before(*e.ValidFrom) {
		return false
	}
	if e.ValidUntil != nil && now.After(*e.ValidUntil) {
		return false
	}
	return true
}

// TargetsClass reports whether a membership class may redeem this entitlement.
func (e *Entitlement) TargetsClass(c MemberClass) bool {
	if len(e.Targets) == 0 {
		return true
	}
	for _, t := range e.Targets {
		if t == c {
			return true
		}
	}
	return false
}

// Redeemable reports whether the entitlement is active and within its window.
func (e *Entitlement) Redeemable(now time.Time) bool {
	return e != nil && e.Active && e.WithinWindow(now)
}
