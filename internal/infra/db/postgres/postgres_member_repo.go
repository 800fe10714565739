package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.MemberRepository = (*memberRepo)(nil)

type memberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) repository.MemberRepository {
	return &memberRepo{pool: pool}
}

func (r *memberRepo) Save(ctx context.Context, tx repository.Tx, m *model.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `
INSERT INTO members (id, name, class, balance, registered_at, last_active_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  class = EXCLUDED.class,
  last_active_at = EXCLUDED.last_active_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.Name, string(m.Class), m.Balance, m.RegisteredAt, m.LastActiveAt,
	)
	return err
}

func (r *memberRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Member, error) {
	const q = `
SELECT id, name, class, balance, registered_at, last_active_at
  FROM members
 WHERE id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var m model.Member
	var class string
	err = row.Scan(&m.ID, &m.Name, &class, &m.Balance, &m.RegisteredAt, &m.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	m.Class = model.MemberClass(class)
	return &m, nil
}

// AdjustBalance applies the delta in one conditional statement so a
// debit can never drive the balance negative, regardless of what the
// caller read earlier.
func (r *memberRepo) AdjustBalance(ctx context.Context, tx repository.Tx, memberID string, delta int64) (int64, error) {
	const q = `
UPDATE members
   SET balance = balance + $2
 WHERE id = $1 AND balance + $2 >= 0
RETURNING balance;
`
	row, err := pickRow(ctx, r.pool, tx, q, memberID, delta)
	if err != nil {
		return 0, err
	}

	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing member from an overdraw.
			if _, ferr := r.FindByID(ctx, tx, memberID); ferr != nil {
				return 0, ferr
			}
			return 0, domain.ErrInsufficientBalance
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return balance, nil
}
