// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
)

// LedgerUseCase is the single source of truth for a member's points
// balance. Deltas are applied atomically per member; a debit that would
// drive the balance negative fails with ErrInsufficientBalance. Callers
// never read-then-write the balance themselves.
type LedgerUseCase struct {
	members repository.MemberRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewLedgerUseCase(members repository.MemberRepository, tm repository.TransactionManager, logger *zerolog.Logger) *LedgerUseCase {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &LedgerUseCase{members: members, tm: tm, log: &l}
}

// Reserve debits amount from the member's balance, failing without any
// change when funds are insufficient.
func (uc *LedgerUseCase) Reserve(ctx context.Context, memberID string, amount int64) (int64, error) {
	if memberID == "" || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	var balance int64
	err := uc.tm.WithMemberTx(ctx, memberID, func(ctx context.Context, tx repository.Tx) error {
		b, err := uc.members.AdjustBalance(ctx, tx, memberID, -amount)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, err
	}
	uc.log.Debug().Str("member_id", memberID).Int64("amount", amount).Int64("balance", balance).Msg("points reserved")
	return balance, nil
}

// Credit adds amount to the member's balance. Always succeeds for
// non-negative amounts on an existing member.
func (uc *LedgerUseCase) Credit(ctx context.Context, memberID string, amount int64) (int64, error) {
	if memberID == "" || amount < 0 {
		return 0, domain.ErrInvalidArgument
	}
	var balance int64
	err := uc.tm.WithMemberTx(ctx, memberID, func(ctx context.Context, tx repository.Tx) error {
		b, err := uc.members.AdjustBalance(ctx, tx, memberID, amount)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, err
	}
	uc.log.Debug().Str("member_id", memberID).Int64("amount", amount).Int64("balance", balance).Msg("points credited")
	return balance, nil
}

// Member returns the member including the current balance snapshot.
// Backs the client's balance re-fetch after a finalization event.
func (uc *LedgerUseCase) Member(ctx context.Context, memberID string) (*model.Member, error) {
	if memberID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.members.FindByID(ctx, repository.NoTX, memberID)
}
