// File: internal/usecase/verifier_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/config"
	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/adapter"
	"loyalty-redemption-core/internal/domain/ports/repository"
	"loyalty-redemption-core/internal/infra/logging"
	"loyalty-redemption-core/internal/infra/metrics"
)

// TokenLocker serializes near-simultaneous scans of the same code
// before they reach the database. It is a pre-filter only; the
// conditional state transition in the token repository remains the
// authority for exactly-once consumption.
type TokenLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// MemberSummary is what the scanning client displays after a
// successful consumption.
type MemberSummary struct {
	ID    string
	Name  string
	Class model.MemberClass
}

// EntitlementSummary accompanies MemberSummary on the scan result.
type EntitlementSummary struct {
	ID        string
	Title     string
	Kind      model.EntitlementKind
	CashValue int64
}

// ConsumeResult is returned to the staff/partner client on success.
type ConsumeResult struct {
	Token       *model.RedemptionToken
	Member      MemberSummary
	Entitlement EntitlementSummary
}

// VerifierUseCase finalizes issued tokens exactly once and owns the
// terminal transitions of the token lifecycle, including the expiry
// sweep.
type VerifierUseCase struct {
	members      repository.MemberRepository
	entitlements repository.EntitlementRepository
	tokens       repository.RedemptionTokenRepository
	records      repository.RedemptionRecordRepository
	tm           repository.TransactionManager
	publisher    adapter.EventPublisher
	locker       TokenLocker // optional

	expiredPolicy config.ExpiredPolicy
	log           *zerolog.Logger
}

func NewVerifierUseCase(
	members repository.MemberRepository,
	entitlements repository.EntitlementRepository,
	tokens repository.RedemptionTokenRepository,
	records repository.RedemptionRecordRepository,
	tm repository.TransactionManager,
	publisher adapter.EventPublisher,
	locker TokenLocker,
	expiredPolicy config.ExpiredPolicy,
	logger *zerolog.Logger,
) *VerifierUseCase {
	l := logger.With().Str("component", "VerifierUC").Logger()
	return &VerifierUseCase{
		members:       members,
		entitlements:  entitlements,
		tokens:        tokens,
		records:       records,
		tm:            tm,
		publisher:     publisher,
		locker:        locker,
		expiredPolicy: expiredPolicy,
		log:           &l,
	}
}

// Consume finalizes the token identified by its scannable code.
// Exactly one call per token may succeed; losers of the race receive
// ErrTokenAlreadyConsumed, an overdue token receives ErrTokenExpired
// (and is transitioned to expired as a side effect), and an unknown
// code receives ErrTokenNotFound. No reversal is provided.
func (uc *VerifierUseCase) Consume(ctx context.Context, code, actorID, outletID string) (*ConsumeResult, error) {
	if code == "" || actorID == "" {
		return nil, domain.ErrInvalidArgument
	}
	defer logging.TraceDuration(uc.log, "VerifierUC.Consume")()
	start := time.Now()

	if uc.locker != nil {
		lockToken, err := uc.locker.TryLock(ctx, "consume:"+code, 10*time.Second)
		if err != nil {
			return nil, domain.ErrConcurrencyConflict
		}
		defer func() { _ = uc.locker.Unlock(ctx, "consume:"+code, lockToken) }()
	}

	// Resolve the code to a member first: the consume transaction takes
	// the member's serialization lock, so it settles strictly before or
	// after any redemption request counting quotas for that member. The
	// authoritative read is repeated inside the transaction.
	peek, err := uc.tokens.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncConsumeRejected(consumeReason(domain.ErrTokenNotFound))
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}

	var (
		result  *ConsumeResult
		evt     model.RedemptionFinalized
		overdue *model.RedemptionToken
	)
	err = uc.tm.WithMemberTx(ctx, peek.MemberID, func(ctx context.Context, tx repository.Tx) error {
		tok, err := uc.tokens.FindByCode(ctx, tx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrTokenNotFound
			}
			return err
		}

		switch tok.Status {
		case model.TokenStatusConsumed:
			return domain.ErrTokenAlreadyConsumed
		case model.TokenStatusExpired, model.TokenStatusVoided:
			return domain.ErrTokenExpired
		}

		updated, err := uc.tokens.MarkConsumed(ctx, tx, tok.ID, actorID, outletID)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				cur, ferr := uc.tokens.FindByID(ctx, tx, tok.ID)
				if ferr != nil {
					return domain.ErrTokenNotFound
				}
				switch cur.Status {
				case model.TokenStatusConsumed:
					return domain.ErrTokenAlreadyConsumed
				case model.TokenStatusIssued:
					// Stopped by the store's expiry clock. Returning an
					// error rolls this transaction back, so the expired
					// transition must be committed separately afterwards.
					overdue = cur
					return domain.ErrTokenExpired
				default:
					return domain.ErrTokenExpired
				}
			}
			return err
		}

		ent, err := uc.entitlements.FindByID(ctx, tx, updated.EntitlementID)
		if err != nil {
			return err
		}
		member, err := uc.members.FindByID(ctx, tx, updated.MemberID)
		if err != nil {
			return err
		}

		rec := model.NewRedemptionRecord(updated, ent, actorID, outletID, *updated.ConsumedAt)
		if err := uc.records.Save(ctx, tx, rec); err != nil {
			return err
		}

		result = &ConsumeResult{
			Token:       updated,
			Member:      MemberSummary{ID: member.ID, Name: member.Name, Class: member.Class},
			Entitlement: EntitlementSummary{ID: ent.ID, Title: ent.Title, Kind: ent.Kind, CashValue: ent.CashValue},
		}
		evt = model.RedemptionFinalized{
			MemberID:         member.ID,
			TokenID:          updated.ID,
			EntitlementID:    ent.ID,
			EntitlementTitle: ent.Title,
			EntitlementKind:  ent.Kind,
			CashValue:        ent.CashValue,
			OutletID:         outletID,
			FinalizedAt:      *updated.ConsumedAt,
		}
		return nil
	})
	if err != nil {
		if overdue != nil {
			if eerr := uc.expireToken(ctx, overdue); eerr != nil && !errors.Is(eerr, domain.ErrConcurrencyConflict) {
				uc.log.Warn().Err(eerr).Str("token_id", overdue.ID).Msg("expired transition after losing scan failed")
			}
		}
		metrics.IncConsumeRejected(consumeReason(err))
		return nil, err
	}

	// Publish only after the transaction committed; a rolled-back
	// consumption must never produce a client-visible event.
	if uc.publisher != nil {
		if perr := uc.publisher.PublishRedemptionFinalized(ctx, evt); perr != nil {
			uc.log.Warn().Err(perr).Str("token_id", evt.TokenID).Msg("finalization event publish failed")
		}
	}

	metrics.IncTokenConsumed()
	metrics.ObserveConsumeLatency(int(time.Since(start).Milliseconds()))
	uc.log.Info().
		Str("token_id", result.Token.ID).
		Str("member_id", result.Member.ID).
		Str("outlet_id", outletID).
		Msg("redemption token consumed")
	return result, nil
}

// expireToken commits the issued -> expired transition in its own
// per-member transaction, crediting the issuance debit back when the
// refund policy is active. ErrConcurrencyConflict means a concurrent
// scan or sweep reached the token first.
func (uc *VerifierUseCase) expireToken(ctx context.Context, tok *model.RedemptionToken) error {
	refund := uc.expiredPolicy == config.ExpiredPolicyRefund && tok.PointsDebited > 0
	err := uc.tm.WithMemberTx(ctx, tok.MemberID, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.tokens.MarkExpired(ctx, tx, tok.ID); err != nil {
			return err
		}
		if refund {
			if _, err := uc.members.AdjustBalance(ctx, tx, tok.MemberID, tok.PointsDebited); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if refund {
		metrics.AddPointsRefunded(tok.PointsDebited)
	}
	metrics.IncTokensExpired(1)
	return nil
}

// ExpireOverdue sweeps issued tokens past their expiry into the expired
// state. Under the refund policy, the points debited at issuance are
// credited back in the same per-member transaction as the transition.
// Returns how many tokens were expired.
func (uc *VerifierUseCase) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(uc.log, "VerifierUC.ExpireOverdue")()
	overdue, err := uc.tokens.ListOverdueIssued(ctx, repository.NoTX, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, tok := range overdue {
		if err := uc.expireToken(ctx, tok); err != nil {
			// Lost to a concurrent scan or another sweep; nothing to do.
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func consumeReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "other"
	}
}
