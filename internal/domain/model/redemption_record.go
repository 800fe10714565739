package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// RedemptionRecord is the durable audit row written atomically with a
// token consumption. Records are never mutated or deleted; daily and
// lifetime quota checks count them.
type RedemptionRecord struct {
	ID            string
	MemberID      string
	EntitlementID string
	TokenID       string
	OutletID      string
	ActorID       string
	CashValue     int64
	PointsSpent   int64
	RedeemedAt    time.Time
}

func NewRedemptionRecord(tok *RedemptionToken, ent *Entitlement, actorID, outletID string, at time.Time) *RedemptionRecord {
	return &RedemptionRecord{
		ID:            ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		MemberID:      tok.MemberID,
		EntitlementID: tok.EntitlementID,
		TokenID:       tok.ID,
		OutletID:      outletID,
		ActorID:       actorID,
		CashValue:     ent.CashValue,
		PointsSpent:   tok.PointsDebited,
		RedeemedAt:    at,
	}
}
