// File: internal/usecase/catalog_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
)

// CatalogUseCase is the read side of the entitlement catalog used by
// browsing clients. The redemption authority reads the catalog through
// its own transaction for snapshot consistency; this use case serves
// the cheap, cacheable paths.
type CatalogUseCase struct {
	entitlements repository.EntitlementRepository
	log          *zerolog.Logger
}

func NewCatalogUseCase(entitlements repository.EntitlementRepository, logger *zerolog.Logger) *CatalogUseCase {
	l := logger.With().Str("component", "CatalogUC").Logger()
	return &CatalogUseCase{entitlements: entitlements, log: &l}
}

// Get returns one entitlement definition.
func (uc *CatalogUseCase) Get(ctx context.Context, id string) (*model.Entitlement, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.entitlements.FindByID(ctx, repository.NoTX, id)
}

// ListRedeemable returns the active entitlements currently inside their
// validity window, optionally filtered to those a class may redeem.
func (uc *CatalogUseCase) ListRedeemable(ctx context.Context, class model.MemberClass) ([]*model.Entitlement, error) {
	all, err := uc.entitlements.ListActive(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]*model.Entitlement, 0, len(all))
	for _, e := range all {
		if !e.WithinWindow(now) {
			continue
		}
		if class != "" && !e.TargetsClass(class) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
