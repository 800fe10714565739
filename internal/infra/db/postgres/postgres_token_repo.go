package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.RedemptionTokenRepository = (*tokenRepo)(nil)

// tokenRepo persists redemption tokens. The state transitions are
// single conditional UPDATEs evaluated against the database clock, so
// expiry decisions do not depend on skew between app instances.
type tokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) repository.RedemptionTokenRepository {
	return &tokenRepo{pool: pool}
}

const tokenColumns = `
id, code, member_id, entitlement_id, status, points_debited,
issued_at, expires_at, consumed_at, consumed_by, consumed_outlet`

func (r *tokenRepo) Save(ctx context.Context, tx repository.Tx, t *model.RedemptionToken) error {
	const q = `
INSERT INTO redemption_tokens (id, code, member_id, entitlement_id, status, points_debited,
  issued_at, expires_at, consumed_at, consumed_by, consumed_outlet)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.Code, t.MemberID, t.EntitlementID, string(t.Status), t.PointsDebited,
		t.IssuedAt, t.ExpiresAt, t.ConsumedAt, t.ConsumedBy, t.ConsumedOutlet,
	)
	return err
}

func (r *tokenRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RedemptionToken, error) {
	const q = `SELECT ` + tokenColumns + ` FROM redemption_tokens WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanToken(row)
}

func (r *tokenRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionToken, error) {
	const q = `SELECT ` + tokenColumns + ` FROM redemption_tokens WHERE code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanToken(row)
}

// MarkConsumed performs the issued -> consumed transition guarded by
// the store clock. Zero rows means the token was already terminal or
// past expiry; the caller classifies that loss.
func (r *tokenRepo) MarkConsumed(ctx context.Context, tx repository.Tx, id, actorID, outletID string) (*model.RedemptionToken, error) {
	const q = `
UPDATE redemption_tokens
   SET status = 'consumed', consumed_at = now(), consumed_by = $2, consumed_outlet = $3
 WHERE id = $1 AND status = 'issued' AND expires_at > now()
RETURNING ` + tokenColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id, actorID, outletID)
	if err != nil {
		return nil, err
	}
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrConcurrencyConflict
		}
		return nil, err
	}
	return t, nil
}

func (r *tokenRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE redemption_tokens
   SET status = 'expired'
 WHERE id = $1 AND status = 'issued';
`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (r *tokenRepo) ListOverdueIssued(ctx context.Context, tx repository.Tx, limit int) ([]*model.RedemptionToken, error) {
	const q = `
SELECT ` + tokenColumns + `
  FROM redemption_tokens
 WHERE status = 'issued' AND expires_at <= now()
 ORDER BY expires_at
 LIMIT $1;
`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RedemptionToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tokenRepo) CountIssuedByMember(ctx context.Context, tx repository.Tx, memberID, entitlementID string, since *time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM redemption_tokens
 WHERE member_id = $1 AND entitlement_id = $2
   AND status = 'issued' AND expires_at > now()
   AND ($3::timestamptz IS NULL OR issued_at >= $3);
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

func (r *tokenRepo) CountIssuedByEntitlement(ctx context.Context, tx repository.Tx, entitlementID string) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM redemption_tokens
 WHERE entitlement_id = $1 AND status = 'issued' AND expires_at > now();
`
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

func scanToken(row pgx.Row) (*model.RedemptionToken, error) {
	var t model.RedemptionToken
	var status string
	err := row.Scan(
		&t.ID, &t.Code, &t.MemberID, &t.EntitlementID, &status, &t.PointsDebited,
		&t.IssuedAt, &t.ExpiresAt, &t.ConsumedAt, &t.ConsumedBy, &t.ConsumedOutlet,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	t.Status = model.TokenStatus(status)
	return &t, nil
}
