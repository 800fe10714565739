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
var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) repository.EntitlementRepository {
	return &entitlementRepo{pool: pool}
}

const entitlementColumns = `
id, title, kind, points_cost, cash_value,
valid_from, valid_until, valid_days,
lifetime_cap, daily_cap, global_cap,
targets, active, created_at, updated_at`

func (r *entitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	targets := make([]string, 0, len(e.Targets))
	for _, t := range e.Targets {
		targets = append(targets, string(t))
	}
	const q = `
INSERT INTO entitlements (id, title, kind, points_cost, cash_value,
  valid_from, valid_until, valid_days,
  lifetime_cap, daily_cap, global_cap,
  targets, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  kind = EXCLUDED.kind,
  points_cost = EXCLUDED.points_cost,
  cash_value = EXCLUDED.cash_value,
  valid_from = EXCLUDED.valid_from,
  valid_until = EXCLUDED.valid_until,
  valid_days = EXCLUDED.valid_days,
  lifetime_cap = EXCLUDED.lifetime_cap,
  daily_cap = EXCLUDED.daily_cap,
  global_cap = EXCLUDED.global_cap,
  targets = EXCLUDED.targets,
  active = EXCLUDED.active,
  updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.Title, string(e.Kind), e.PointsCost, e.CashValue,
		e.ValidFrom, e.ValidUntil, e.ValidDays,
		e.LifetimeCap, e.DailyCap, e.GlobalCap,
		targets, e.Active, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *entitlementRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entitlement, error) {
	const q = `SELECT ` + entitlementColumns + ` FROM entitlements WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEntitlement(row)
}

func (r *entitlementRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Entitlement, error) {
	const q = `SELECT ` + entitlementColumns + ` FROM entitlements WHERE active ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntitlement(row pgx.Row) (*model.Entitlement, error) {
	var e model.Entitlement
	var kind string
	var targets []string
	err := row.Scan(
		&e.ID, &e.Title, &kind, &e.PointsCost, &e.CashValue,
		&e.ValidFrom, &e.ValidUntil, &e.ValidDays,
		&e.LifetimeCap, &e.DailyCap, &e.GlobalCap,
		&targets, &e.Active, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	e.Kind = model.EntitlementKind(kind)
	for _, t := range targets {
		e.Targets = append(e.Targets, model.MemberClass(t))
	}
	return &e, nil
}
