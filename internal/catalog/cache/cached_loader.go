package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pizzacall/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type Loader interface {
	Load(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error)
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedLoader serves catalog snapshots from a shared cache and falls back to
// the wrapped loader. Cache failures never fail a load.
type CachedLoader struct {
	next   Loader
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedLoader(next Loader, store Store, ttl time.Duration, logger *zap.Logger) *CachedLoader {
	return &CachedLoader{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

type cachedSnapshot struct {
	TenantID string            `json:"tenantId"`
	Lines    []domain.MenuLine `json:"lines"`
}

func (c *CachedLoader) Load(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
	key := cacheKey(tenantID)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached cachedSnapshot
		if err := json.Unmarshal(data, &cached); err == nil && len(cached.Lines) > 0 {
			c.logger.Debug("catalog cache hit", zap.String("pizzeriaId", tenantID))
			return domain.NewCatalogSnapshot(tenantID, cached.Lines), nil
		}
		c.logger.Warn("discarding unreadable catalog cache entry", zap.String("pizzeriaId", tenantID))
	case errors.Is(err, ErrCacheMiss):
	default:
		c.logger.Warn("catalog cache read failed", zap.String("pizzeriaId", tenantID), zap.Error(err))
	}

	snapshot, err := c.next.Load(ctx, tenantID)
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}

	payload, err := json.Marshal(cachedSnapshot{TenantID: tenantID, Lines: snapshot.Lines()})
	if err == nil {
		if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
			c.logger.Warn("catalog cache write failed", zap.String("pizzeriaId", tenantID), zap.Error(err))
		}
	}

	return snapshot, nil
}

func cacheKey(tenantID string) string {
	return "pizzacall:catalog:" + tenantID
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
