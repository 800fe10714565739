// File: internal/usecase/redemption_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
	"loyalty-redemption-core/internal/infra/logging"
	"loyalty-redemption-core/internal/infra/metrics"
)

// RedemptionUseCase is the redemption authority: it decides whether a
// member may redeem an entitlement right now and, if so, atomically
// debits the ledger and mints a short-lived token.
//
// Eligibility is evaluated in a fixed order, short-circuiting on the
// first failure with a distinct error:
//  1. entitlement active and within its validity window
//  2. member's class targeted
//  3. global cap
//  4. member lifetime cap
//  5. member per-day cap (calendar day in the program timezone)
//  6. balance covers the cost (unless the class is points-exempt)
//
// Checks and the debit+mint run inside one per-member transaction, so
// two concurrent requests for the same member are serialized and cannot
// both be admitted past a cap or overdraw the balance.
type RedemptionUseCase struct {
	members      repository.MemberRepository
	entitlements repository.EntitlementRepository
	tokens       repository.RedemptionTokenRepository
	records      repository.RedemptionRecordRepository
	tm           repository.TransactionManager

	tokenTTL time.Duration
	loc      *time.Location
	log      *zerolog.Logger
}

func NewRedemptionUseCase(
	members repository.MemberRepository,
	entitlements repository.EntitlementRepository,
	tokens repository.RedemptionTokenRepository,
	records repository.RedemptionRecordRepository,
	tm repository.TransactionManager,
	tokenTTL time.Duration,
	loc *time.Location,
	logger *zerolog.Logger,
) *RedemptionUseCase {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "RedemptionUC").Logger()
	return &RedemptionUseCase{
		members:      members,
		entitlements: entitlements,
		tokens:       tokens,
		records:      records,
		tm:           tm,
		tokenTTL:     tokenTTL,
		loc:          loc,
		log:          &l,
	}
}

// Request validates eligibility and mints a redemption token.
// On success the returned token is in state issued with a short expiry;
// the member's balance has already been debited by the points cost.
func (uc *RedemptionUseCase) Request(ctx context.Context, memberID, entitlementID string) (*model.RedemptionToken, error) {
	if memberID == "" || entitlementID == "" {
		return nil, domain.ErrInvalidArgument
	}
	defer logging.TraceDuration(uc.log, "RedemptionUC.Request")()

	var minted *model.RedemptionToken
	err := uc.tm.WithMemberTx(ctx, memberID, func(ctx context.Context, tx repository.Tx) error {
		ent, err := uc.entitlements.FindByID(ctx, tx, entitlementID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrEntitlementUnavailable
			}
			return err
		}

		now := time.Now()
		if !ent.Redeemable(now) {
			return domain.ErrEntitlementUnavailable
		}

		member, err := uc.members.FindByID(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if !ent.TargetsClass(member.Class) {
			return domain.ErrEntitlementUnavailable
		}

		if err := uc.checkCaps(ctx, tx, member, ent, now); err != nil {
			return err
		}

		var debited int64
		if ent.PointsCost > 0 && !member.Class.PointsExempt() {
			if _, err := uc.members.AdjustBalance(ctx, tx, member.ID, -ent.PointsCost); err != nil {
				return err
			}
			debited = ent.PointsCost
		}

		code, err := generateRedemptionCode()
		if err != nil {
			return err
		}
		tok := model.NewRedemptionToken(code, member.ID, ent.ID, debited, now, uc.tokenTTL)
		if err := uc.tokens.Save(ctx, tx, tok); err != nil {
			return err
		}
		minted = tok
		return nil
	})
	if err != nil {
		metrics.IncRedemptionRejected(rejectReason(err))
		return nil, err
	}

	metrics.IncTokenIssued()
	uc.log.Info().
		Str("member_id", memberID).
		Str("entitlement_id", entitlementID).
		Str("token_id", minted.ID).
		Time("expires_at", minted.ExpiresAt).
		Msg("redemption token issued")
	return minted, nil
}

// History lists the member's completed redemptions, newest first.
func (uc *RedemptionUseCase) History(ctx context.Context, memberID string, offset, limit int) ([]*model.RedemptionRecord, error) {
	if memberID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return uc.records.ListByMember(ctx, repository.NoTX, memberID, offset, limit)
}

// checkCaps enforces the global, lifetime and daily quotas. Durable
// records count completed redemptions; live issued tokens count too so
// two outstanding tokens cannot overshoot a cap before consumption.
func (uc *RedemptionUseCase) checkCaps(ctx context.Context, tx repository.Tx, member *model.Member, ent *model.Entitlement, now time.Time) error {
	if ent.GlobalCap > 0 {
		consumed, err := uc.records.CountByEntitlement(ctx, tx, ent.ID)
		if err != nil {
			return err
		}
		live, err := uc.tokens.CountIssuedByEntitlement(ctx, tx, ent.ID)
		if err != nil {
			return err
		}
		if consumed+live >= ent.GlobalCap {
			return domain.ErrQuotaExceededGlobal
		}
	}

	if ent.LifetimeCap > 0 {
		consumed, err := uc.records.CountByMember(ctx, tx, member.ID, ent.ID, nil)
		if err != nil {
			return err
		}
		live, err := uc.tokens.CountIssuedByMember(ctx, tx, member.ID, ent.ID, nil)
		if err != nil {
			return err
		}
		if consumed+live >= ent.LifetimeCap {
			return domain.ErrQuotaExceededLifetime
		}
	}

	if ent.DailyCap > 0 {
		since := dayStart(now, uc.loc)
		consumed, err := uc.records.CountByMember(ctx, tx, member.ID, ent.ID, &since)
		if err != nil {
			return err
		}
		live, err := uc.tokens.CountIssuedByMember(ctx, tx, member.ID, ent.ID, &since)
		if err != nil {
			return err
		}
		if consumed+live >= ent.DailyCap {
			return domain.ErrQuotaExceededDaily
		}
	}

	return nil
}

// dayStart returns midnight of the calendar day containing t in the
// program's reference timezone.
func dayStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEntitlementUnavailable):
		return "entitlement_unavailable"
	case errors.Is(err, domain.ErrQuotaExceededGlobal):
		return "quota_global"
	case errors.Is(err, domain.ErrQuotaExceededLifetime):
		return "quota_lifetime"
	case errors.Is(err, domain.ErrQuotaExceededDaily):
		return "quota_daily"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "other"
	}
}
