package catalog

import (
	"database/sql"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pizzacall/internal/catalog/cache"
	"pizzacall/internal/catalog/controller"
	"pizzacall/internal/catalog/repository"
	"pizzacall/internal/catalog/service"
	"pizzacall/internal/config"
)

// NewModule wires the snapshot loader. redisClient may be nil, in which case
// every call reads straight from MySQL.
func NewModule(db *sql.DB, redisClient *redis.Client, cfg *config.Config, logger *zap.Logger) (cache.Loader, *controller.MenuController) {
	loader := newLoader(db, redisClient, cfg, logger)
	return loader, controller.NewMenuController(loader, logger)
}

func newLoader(db *sql.DB, redisClient *redis.Client, cfg *config.Config, logger *zap.Logger) cache.Loader {
	repo := repository.NewMySQLMenuRepository(db)
	loader := service.NewSnapshotLoader(repo, logger, cfg.Session.CatalogMaxAttempts)

	if redisClient == nil {
		return loader
	}

	return cache.NewCachedLoader(loader, cache.NewRedisStore(redisClient), cfg.Redis.CatalogTTL, logger)
}
