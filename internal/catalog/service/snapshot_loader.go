package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pizzacall/internal/domain"
	"pizzacall/internal/errors"
	"pizzacall/internal/infrastructure/mysql"
)

type MenuRepository interface {
	FindAvailableByTenant(ctx context.Context, tenantID string) ([]domain.MenuItem, error)
}

// SnapshotLoader builds the per-call catalog snapshot. Reads are retried a
// bounded number of times on transient storage errors.
type SnapshotLoader struct {
	repo        MenuRepository
	logger      *zap.Logger
	maxAttempts int
	backoffs    []time.Duration
}

func NewSnapshotLoader(repo MenuRepository, logger *zap.Logger, maxAttempts int) *SnapshotLoader {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SnapshotLoader{
		repo:        repo,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffs:    []time.Duration{100 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond},
	}
}

func (l *SnapshotLoader) Load(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
	var lastErr error

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		items, err := l.repo.FindAvailableByTenant(ctx, tenantID)
		if err == nil {
			lines := domain.MenuLinesFromItems(items)
			if len(lines) == 0 {
				return domain.CatalogSnapshot{}, errors.NewNotFoundError(fmt.Sprintf("pizzeria %s has no available menu items", tenantID))
			}
			l.logger.Debug("catalog snapshot loaded", zap.String("pizzeriaId", tenantID), zap.Int("lineCount", len(lines)), zap.Int("attempt", attempt))
			return domain.NewCatalogSnapshot(tenantID, lines), nil
		}

		lastErr = err
		if !mysql.IsTransient(err) || attempt == l.maxAttempts {
			break
		}

		l.logger.Warn("transient error loading catalog, retrying", zap.String("pizzeriaId", tenantID), zap.Int("attempt", attempt), zap.Int("maxAttempts", l.maxAttempts), zap.Error(err))

		select {
		case <-ctx.Done():
			return domain.CatalogSnapshot{}, fmt.Errorf("loading catalog: %w", ctx.Err())
		case <-time.After(l.backoff(attempt)):
		}
	}

	return domain.CatalogSnapshot{}, fmt.Errorf("loading catalog: %w", lastErr)
}

func (l *SnapshotLoader) backoff(attempt int) time.Duration {
	if attempt-1 < len(l.backoffs) {
		return l.backoffs[attempt-1]
	}
	return l.backoffs[len(l.backoffs)-1]
}
