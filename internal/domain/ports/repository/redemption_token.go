package repository

import (
	"context"
	"time"

	"loyalty-redemption-core/internal/domain/model"
)

// RedemptionTokenRepository is the port for the transient single-use tokens.
type RedemptionTokenRepository interface {
	Save(ctx context.Context, tx Tx, t *model.RedemptionToken) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.RedemptionToken, error)
	// FindByCode looks a token up by its scannable code regardless of state.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.RedemptionToken, error)

	// MarkConsumed performs the issued -> consumed transition iff the token
	// is still issued and not past expiry by the store's authoritative
	// clock. It returns the updated token, or domain.ErrConcurrencyConflict
	// when no transition happened (caller re-reads to classify the loss as
	// already-consumed vs expired).
	MarkConsumed(ctx context.Context, tx Tx, id, actorID, outletID string) (*model.RedemptionToken, error)

	// MarkExpired performs the issued -> expired transition. It is a no-op
	// returning domain.ErrConcurrencyConflict if the token already left
	// the issued state.
	MarkExpired(ctx context.Context, tx Tx, id string) error

	// ListOverdueIssued returns up to limit tokens still issued whose
	// expiry has passed, for the sweep worker.
	ListOverdueIssued(ctx context.Context, tx Tx, limit int) ([]*model.RedemptionToken, error)

	// CountIssuedByMember counts live (issued, unexpired) tokens held by
	// the member for the entitlement, issued at or after since when since
	// is non-nil. Quota checks add these to the durable record counts so
	// two outstanding tokens cannot overshoot a cap before consumption.
	CountIssuedByMember(ctx context.Context, tx Tx, memberID, entitlementID string, since *time.Time) (int, error)

	// CountIssuedByEntitlement is the global-cap variant of the above.
	CountIssuedByEntitlement(ctx context.Context, tx Tx, entitlementID string) (int, error)
}
