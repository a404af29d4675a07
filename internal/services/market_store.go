/**
 * @description
 * GORM-backed MarketStore for the settlement engine.
 * Translates Postgres errors into the engine taxonomy.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgconn: unique-violation detection
 * - backend/internal/engine
 * - backend/internal/models
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foresight-project/backend/internal/engine"
	"github.com/foresight-project/backend/internal/models"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"
)

// uniqueViolation is the Postgres error code raised by duplicate keys.
const uniqueViolation = "23505"

// MarketStore persists market records in Postgres.
type MarketStore struct {
	DB *gorm.DB
}

// NewMarketStore creates a store over the given database handle.
func NewMarketStore(db *gorm.DB) *MarketStore {
	return &MarketStore{DB: db}
}

// Insert writes a new market record; a duplicate (creator, sequence) pair
// fails with engine.ErrMarketExists.
func (s *MarketStore) Insert(ctx context.Context, m *models.Market) error {
	err := s.DB.WithContext(ctx).Create(m).Error
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s/%d", engine.ErrMarketExists, m.Creator, m.Sequence)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s/%d", engine.ErrMarketExists, m.Creator, m.Sequence)
	}
	return err
}

// Get loads one market by its external key.
func (s *MarketStore) Get(ctx context.Context, key engine.MarketKey) (*models.Market, error) {
	var m models.Market
	err := s.DB.WithContext(ctx).
		Where("creator = ? AND sequence = ?", key.Creator, key.Sequence).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", engine.ErrMarketNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkResolved flips status and outcome in a single guarded update. The status
// predicate makes a lost race with another resolve surface as ErrState instead
// of silently double-applying.
func (s *MarketStore) MarkResolved(ctx context.Context, key engine.MarketKey, outcome bool, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Market{}).
		Where("creator = ? AND sequence = ? AND status = ?", key.Creator, key.Sequence, models.MarketStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.MarketStatusResolved,
			"outcome":     outcome,
			"resolved_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: market %s is no longer open", engine.ErrState, key)
	}
	return nil
}
