package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loyalty-redemption-core/internal/domain/model"
	"loyalty-redemption-core/internal/domain/ports/repository"
	"loyalty-redemption-core/internal/infra/metrics"
	red "loyalty-redemption-core/internal/infra/redis"
)

var _ repository.EntitlementRepository = (*entitlementRepoCacheDecorator)(nil)

// entitlementRepoCacheDecorator caches the read-mostly entitlement
// catalog in Redis. Transactional reads bypass the cache entirely: the
// redemption authority needs its snapshot from the transaction so a
// concurrent admin edit cannot change an admitted decision.
type entitlementRepoCacheDecorator struct {
	inner repository.EntitlementRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewEntitlementRepoCacheDecorator(inner repository.EntitlementRepository, cache red.RedisClient, ttl time.Duration) repository.EntitlementRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &entitlementRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *entitlementRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Entitlement, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}

	key := fmt.Sprintf("entitlement:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("entitlement", "hit")
		var e model.Entitlement
		if json.Unmarshal([]byte(val), &e) == nil {
			return &e, nil
		}
	}

	metrics.IncCacheRequest("entitlement", "miss")
	e, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if e != nil {
		bytes, _ := json.Marshal(e)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return e, nil
}

// Save invalidates both the single-entity key and the active listing.
func (d *entitlementRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	d.cache.Del(ctx, fmt.Sprintf("entitlement:%s", e.ID))
	d.cache.Del(ctx, "entitlements:active")
	return d.inner.Save(ctx, tx, e)
}

func (d *entitlementRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Entitlement, error) {
	if tx != nil {
		return d.inner.ListActive(ctx, tx)
	}

	key := "entitlements:active"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("entitlement_list", "hit")
		var list []*model.Entitlement
		if json.Unmarshal([]byte(val), &list) == nil {
			return list, nil
		}
	}

	metrics.IncCacheRequest("entitlement_list", "miss")
	list, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		bytes, _ := json.Marshal(list)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return list, nil
}
