package repository

import (
	"context"

	"loyalty-redemption-core/internal/domain/model"
)

// MemberRepository is the port for member identities and the points ledger.
type MemberRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Member) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Member, error)
	// AdjustBalance applies a signed delta to the member's balance and
	// returns the new balance. A debit that would drive the balance
	// negative returns domain.ErrInsufficientBalance and changes nothing.
	// The adjustment is atomic per member at the storage layer.
	AdjustBalance(ctx context.Context, tx Tx, memberID string, delta int64) (int64, error)
}
