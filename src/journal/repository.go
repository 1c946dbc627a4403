package journal

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cuanbot/src/database"
	"cuanbot/src/model"
)

// Repository handles read/write operations for the trade-event journal.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository bound to the journal database.
func NewRepository() *Repository {
	logger.WithField("component", "JournalRepository").
		Info("Creating new journal repository with MainDB")

	return &Repository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *Repository) WithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record appends one event to the journal.
func (r *Repository) Record(ctx context.Context, event *model.TradeEvent) error {
	logger.WithFields(map[string]interface{}{
		"repo":  "JournalRepository",
		"op":    "Record",
		"pair":  event.Pair,
		"event": event.Event,
	}).Debug("Recording trade event")

	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "JournalRepository",
			"op":   "Record",
		}).WithError(err).Error("Failed to record trade event")

		return err
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]model.TradeEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	var events []model.TradeEvent
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "JournalRepository",
			"op":   "Recent",
		}).WithError(err).Error("Failed to load recent trade events")

		return nil, err
	}
	return events, nil
}

// RecentByPair returns the newest events for one pair, most recent first.
func (r *Repository) RecentByPair(ctx context.Context, pair string, limit int) ([]model.TradeEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	var events []model.TradeEvent
	err := r.db.WithContext(ctx).
		Where("pair = ?", pair).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
