package model

import (
	"time"

	"loyalty-redemption-core/internal/domain"

	"github.com/google/uuid"
)

// MemberClass determines which entitlements a member may redeem and
// whether redemptions debit the points balance.
type MemberClass string

const (
	MemberClassStandard  MemberClass = "standard"
	MemberClassEmployee  MemberClass = "employee"
	MemberClassPerksOnly MemberClass = "perks_only"
)

// PointsExempt reports whether redemptions for this class skip the ledger debit.
func (c MemberClass) PointsExempt() bool { return c == MemberClassPerksOnly }

func (c MemberClass) Valid() bool {
	switch c {
	case MemberClassStandard, MemberClassEmployee, MemberClassPerksOnly:
		return true
	}
	return false
}

// Member is a domain entity representing a loyalty program member.
// Balance is mutated only through the ledger; callers must never
// read-modify-write it.
type Member struct {
	ID           string
	Name         string
	Class        MemberClass
	Balance      int64
	RegisteredAt time.Time
	LastActiveAt time.Time
}

func NewMember(id, name string, class MemberClass) (*Member, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !class.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return &Member{
		ID:           id,
		Name:         name,
		Class:        class,
		Balance:      0,
		RegisteredAt: time.Now(),
		LastActiveAt: time.Now(),
	}, nil
}

func (m *Member) IsZero() bool { return m == nil || m.ID == "" }
func (m *Member) Touch()       { m.LastActiveAt = time.Now() }
