package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.RedemptionRecordRepository = (*recordRepo)(nil)

// recordRepo persists the append-only redemption audit rows. The
// (member_id, entitlement_id, redeemed_at) index backs the quota counts
// evaluated on every redemption attempt.
type recordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) repository.RedemptionRecordRepository {
	return &recordRepo{pool: pool}
}

func (r *recordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error {
	const q = `
INSERT INTO redemption_records (id, member_id, entitlement_id, token_id, outlet_id, actor_id,
  cash_value, points_spent, redeemed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.MemberID, rec.EntitlementID, rec.TokenID, rec.OutletID, rec.ActorID,
		rec.CashValue, rec.PointsSpent, rec.RedeemedAt,
	)
	return err
}

func (r *recordRepo) CountByMember(ctx context.Context, tx repository.Tx, memberID, entitlementID string, since *time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM redemption_records
 WHERE member_id = $1 AND entitlement_id = $2
   AND ($3::timestamptz IS NULL OR redeemed_at >= $3);
`
	row, err := pickRow(ctx, r.pool, tx, q, memberID, entitlementID, since)
	if err != nil {
		return 0, err
	}
	var cnt int
	if err := row.Scan(&cnt); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return cnt, nil
}

func (r *recordRepo) CountByEntitlement(ctx context.Context, tx repository.Tx, entitlementID string) (int, error) {
	const q = `SELECT COUNT(*) FROM redemption_records WHERE entitlement_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, entitlementID)
	if err != nil {
		return 0, err
	}
	var cnt int
	if err := row.Scan(&cnt); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return cnt, nil
}

func (r *recordRepo) ListByMember(ctx context.Context, tx repository.Tx, memberID string, offset, limit int) ([]*model.RedemptionRecord, error) {
	const q = `
SELECT id, member_id, entitlement_id, token_id, outlet_id, actor_id,
       cash_value, points_spent, redeemed_at
  FROM redemption_records
 WHERE member_id = $1
 ORDER BY redeemed_at DESC
 OFFSET $2 LIMIT $3;
`
	rows, err := queryRows(ctx, r.pool, tx, q, memberID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RedemptionRecord
	for rows.Next() {
		var rec model.RedemptionRecord
		if err := rows.Scan(
			&rec.ID, &rec.MemberID, &rec.EntitlementID, &rec.TokenID, &rec.OutletID, &rec.ActorID,
			&rec.CashValue, &rec.PointsSpent, &rec.RedeemedAt,
		); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
