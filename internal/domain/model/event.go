package model

import "time"

// RedemptionFinalized is pushed to the redeeming member's live sessions
// the moment a staff terminal or partner finalizes a token. Delivery is
// best-effort and at-most-once; the client's balance re-fetch is the
// durable fallback.
type RedemptionFinalized struct {
	MemberID         string          `json:"member_id"`
	TokenID          string          `json:"token_id"`
	EntitlementID    string          `json:"entitlement_id"`
	EntitlementTitle string          `json:"entitlement_title"`
	EntitlementKind  EntitlementKind `json:"entitlement_kind"`
	CashValue        int64           `json:"cash_value"`
	OutletID         string          `json:"outlet_id"`
	FinalizedAt      time.Time       `json:"finalized_at"`
}

// EventRedemptionFinalized is the wire name of the event on the
// real-time channel.
const EventRedemptionFinalized = "redemption_finalized"
