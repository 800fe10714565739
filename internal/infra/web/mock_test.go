//go:build !integration

// File: internal/infra/web/mock_test.go
package web

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
	"loyalty-redemption-core/internal/infra/realtime"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---------------- in-memory infra mocks (repos/tx) ----------------

type memTxManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemTxManager() *memTxManager { return &memTxManager{locks: map[string]*sync.Mutex{}} }

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

func (m *memTxManager) WithMemberTx(ctx context.Context, memberID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	l, ok := m.locks[memberID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[memberID] = l
	}
	m.mu.Unlock()
	l.Lock()
	defer l.Unlock()
	return fn(ctx, nil)
}

type memMemberRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Member
}

func newMemMemberRepo() *memMemberRepo { return &memMemberRepo{store: map[string]*model.Member{}} }

func (m *memMemberRepo) Save(ctx context.Context, tx repository.Tx, member *model.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *member
	m.store[member.ID] = &cp
	return nil
}

func (m *memMemberRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *member
	return &cp, nil
}

func (m *memMemberRepo) AdjustBalance(ctx context.Context, tx repository.Tx, memberID string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.store[memberID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if member.Balance+delta < 0 {
		return 0, domain.ErrInsufficientBalance
	}
	member.Balance += delta
	return member.Balance, nil
}

type memEntitlementRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Entitlement
}

func newMemEntitlementRepo() *memEntitlementRepo {
	return &memEntitlementRepo{store: map[string]*model.Entitlement{}}
}

func (m *memEntitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *memEntitlementRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEntitlementRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Entitlement
	for _, e := range m.store {
		if e.Active {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.RedemptionToken
	byCode map[string]string
	Now    func() time.Time
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{
		byID:   map[string]*model.RedemptionToken{},
		byCode: map[string]string{},
		Now:    time.Now,
	}
}

func (m *memTokenRepo) Save(ctx context.Context, tx repository.Tx, t *model.RedemptionToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.ID] = &cp
	m.byCode[t.Code] = t.ID
	return nil
}

func (m *memTokenRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RedemptionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memTokenRepo) MarkConsumed(ctx context.Context, tx repository.Tx, id, actorID, outletID string) (*model.RedemptionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := m.Now()
	if t.Status != model.TokenStatusIssued || t.ExpiredAt(now) {
		return nil, domain.ErrConcurrencyConflict
	}
	t.Status = model.TokenStatusConsumed
	t.ConsumedAt = &now
	t.ConsumedBy = &actorID
	t.ConsumedOutlet = &outletID
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status != model.TokenStatusIssued {
		return domain.ErrConcurrencyConflict
	}
	t.Status = model.TokenStatusExpired
	return nil
}

func (m *memTokenRepo) ListOverdueIssued(ctx context.Context, tx repository.Tx, limit int) ([]*model.RedemptionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	var out []*model.RedemptionToken
	for _, t := range m.byID {
		if t.Status == model.TokenStatusIssued && t.ExpiredAt(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTokenRepo) CountIssuedByMember(ctx context.Context, tx repository.Tx, memberID, entitlementID string, since *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	cnt := 0
	for _, t := range m.byID {
		if t.Status != model.TokenStatusIssued || t.ExpiredAt(now) {
			continue
		}
		if t.MemberID != memberID || t.EntitlementID != entitlementID {
			continue
		}
		if since != nil && t.IssuedAt.Before(*since) {
			continue
		}
		cnt++
	}
	return cnt, nil
}

func (m *memTokenRepo) CountIssuedByEntitlement(ctx context.Context, tx repository.Tx, entitlementID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	cnt := 0
	for _, t := range m.byID {
		if t.Status == model.TokenStatusIssued && !t.ExpiredAt(now) && t.EntitlementID == entitlementID {
			cnt++
		}
	}
	return cnt, nil
}

type memRecordRepo struct {
	mu      sync.RWMutex
	records []*model.RedemptionRecord
}

func newMemRecordRepo() *memRecordRepo { return &memRecordRepo{} }

func (m *memRecordRepo) Save(ctx context.Context, tx repository.Tx, r *model.RedemptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *memRecordRepo) CountByMember(ctx context.Context, tx repository.Tx, memberID, entitlementID string, since *time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, r := range m.records {
		if r.MemberID != memberID || r.EntitlementID != entitlementID {
			continue
		}
		if since != nil && r.RedeemedAt.Before(*since) {
			continue
		}
		cnt++
	}
	return cnt, nil
}

func (m *memRecordRepo) CountByEntitlement(ctx context.Context, tx repository.Tx, entitlementID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, r := range m.records {
		if r.EntitlementID == entitlementID {
			cnt++
		}
	}
	return cnt, nil
}

func (m *memRecordRepo) ListByMember(ctx context.Context, tx repository.Tx, memberID string, offset, limit int) ([]*model.RedemptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.RedemptionRecord
	for _, r := range m.records {
		if r.MemberID == memberID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// hubPublisher short-circuits the pub/sub bus for single-process tests:
// events go straight from the verifier into the local hub.
type hubPublisher struct {
	hub *realtime.Hub
}

func (p *hubPublisher) PublishRedemptionFinalized(ctx context.Context, evt model.RedemptionFinalized) error {
	p.hub.Deliver(evt)
	return nil
}
