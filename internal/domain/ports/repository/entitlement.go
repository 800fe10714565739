package repository

import (
	"context"

	"loyalty-redemption-core/internal/domain/model"
)

// EntitlementRepository is the read-mostly port for voucher and partner
// offer definitions. Admin mutation tooling lives elsewhere; this
// subsystem only needs consistent snapshots and a browse listing.
type EntitlementRepository interface {
	Save(ctx context.Context, tx Tx, e *model.Entitlement) error
	// FindByID returns the definition as a snapshot. When tx is non-nil
	// implementations must read from the transaction (bypassing caches)
	// so an admitted redemption decision cannot be retroactively changed.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Entitlement, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Entitlement, error)
}
