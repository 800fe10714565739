// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// txStore lets the tx manager snapshot a repo before a callback and put
// it back when the callback fails, matching the real manager's rollback.
type txStore interface {
	snapshot() func()
}

// memTxManager runs one transaction at a time and restores every
// registered store when the callback errors, the way the Postgres
// implementation serializes per member and rolls back on error.
type memTxManager struct {
	mu     sync.Mutex
	stores []txStore

	idMu        sync.Mutex
	memberTxIDs []string
}

func newMemTxManager(stores ...txStore) *memTxManager {
	return &memTxManager{stores: stores}
}

func (m *memTxManager) run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	restores := make([]func(), 0, len(m.stores))
	for _, s := range m.stores {
		restores = append(restores, s.snapshot())
	}
	if err := fn(ctx, nil); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return m.run(ctx, fn)
}

func (m *memTxManager) WithMemberTx(ctx context.Context, memberID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.idMu.Lock()
	m.memberTxIDs = append(m.memberTxIDs, memberID)
	m.idMu.Unlock()
	return m.run(ctx, fn)
}

// memberTxs reports which member locks were taken, in order.
func (m *memTxManager) memberTxs() []string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	out := make([]string, len(m.memberTxIDs))
	copy(out, m.memberTxIDs)
	return out
}

// memMemberRepo is a small in-memory implementation used by unit tests.
type memMemberRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Member
	saveErr error // used by tests to simulate save failures
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{store: make(map[string]*model.Member)}
}

func (m *memMemberRepo) Save(ctx context.Context, tx repository.Tx, member *model.Member) error {
	if m.saveErr != nil {
		return m.saveErr
	}
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

func (m *memMemberRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]*model.Member, len(m.store))
	for k, v := range m.store {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.store = saved
	}
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

// memEntitlementRepo holds entitlement definitions for tests.
type memEntitlementRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Entitlement
}

func newMemEntitlementRepo() *memEntitlementRepo {
	return &memEntitlementRepo{store: make(map[string]*model.Entitlement)}
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

func (m *memEntitlementRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]*model.Entitlement, len(m.store))
	for k, v := range m.store {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.store = saved
	}
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

// memTokenRepo implements the token port with an injectable clock so
// tests can move a token past its expiry.
type memTokenRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.RedemptionToken
	byCode map[string]string // code -> id
	Now    func() time.Time
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{
		byID:   make(map[string]*model.RedemptionToken),
		byCode: make(map[string]string),
		Now:    time.Now,
	}
}

func (m *memTokenRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	savedByID := make(map[string]*model.RedemptionToken, len(m.byID))
	for k, v := range m.byID {
		cp := *v
		savedByID[k] = &cp
	}
	savedByCode := make(map[string]string, len(m.byCode))
	for k, v := range m.byCode {
		savedByCode[k] = v
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.byID = savedByID
		m.byCode = savedByCode
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
			if limit > 0 && len(out) >= limit {
				break
			}
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

// memRecordRepo stores audit rows in a slice.
type memRecordRepo struct {
	mu      sync.RWMutex
	records []*model.RedemptionRecord
}

func newMemRecordRepo() *memRecordRepo { return &memRecordRepo{} }

func (m *memRecordRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make([]*model.RedemptionRecord, len(m.records))
	copy(saved, m.records)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.records = saved
	}
}

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
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memPublisher captures published finalization events.
type memPublisher struct {
	mu     sync.Mutex
	events []model.RedemptionFinalized
	err    error
}

func (m *memPublisher) PublishRedemptionFinalized(ctx context.Context, evt model.RedemptionFinalized) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memPublisher) published() []model.RedemptionFinalized {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RedemptionFinalized, len(m.events))
	copy(out, m.events)
	return out
}
