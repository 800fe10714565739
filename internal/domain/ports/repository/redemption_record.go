package repository

import (
	"context"
	"time"

	"loyalty-redemption-core/internal/domain/model"
)

// RedemptionRecordRepository is the port for the append-only audit rows.
// Records back the per-day / per-lifetime / global quota counts, so the
// count queries must be cheap (indexed on member+entitlement+redeemed_at).
type RedemptionRecordRepository interface {
	Save(ctx context.Context, tx Tx, r *model.RedemptionRecord) error
	// CountByMember counts records for the member/entitlement pair,
	// redeemed at or after since when since is non-nil.
	CountByMember(ctx context.Context, tx Tx, memberID, entitlementID string, since *time.Time) (int, error)
	// CountByEntitlement counts all records for the entitlement (global cap).
	CountByEntitlement(ctx context.Context, tx Tx, entitlementID string) (int, error)
	ListByMember(ctx context.Context, tx Tx, memberID string, offset, limit int) ([]*model.RedemptionRecord, error)
}
