package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/internal/repo"
	"github.com/mydentalfly/quote-backend/pkg/db/models"
)

// DB keeps durable quote snapshots in quote_snapshots. Expired rows are
// treated as absent.
type DB struct {
	repo.Base
	ttl time.Duration
	now func() time.Time
}

func NewDB(db *gorm.DB, ttl time.Duration) (*DB, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("snapshot ttl must be positive")
	}
	return &DB{Base: repo.NewBase(db), ttl: ttl, now: time.Now}, nil
}

func (d *DB) Backend() string { return "db" }

func (d *DB) Load(ctx context.Context, key string) (*quote.State, error) {
	var row models.QuoteSnapshot
	err := d.DB(ctx).
		Where("quote_key = ? AND expires_at > ?", key, d.now().UTC()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load quote snapshot %s: %w", key, err)
	}

	var st quote.State
	if err := json.Unmarshal([]byte(row.Payload), &st); err != nil {
		return nil, fmt.Errorf("decode quote snapshot %s: %w", key, err)
	}
	return &st, nil
}

func (d *DB) Save(ctx context.Context, key string, state quote.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode quote snapshot %s: %w", key, err)
	}
	now := d.now().UTC()
	row := models.QuoteSnapshot{
		QuoteKey:  key,
		Payload:   string(payload),
		ExpiresAt: now.Add(d.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = d.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quote_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save quote snapshot %s: %w", key, err)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, key string) error {
	if err := d.DB(ctx).Where("quote_key = ?", key).Delete(&models.QuoteSnapshot{}).Error; err != nil {
		return fmt.Errorf("delete quote snapshot %s: %w", key, err)
	}
	return nil
}

// PurgeExpired removes snapshots past their expiry and reports how many.
func (d *DB) PurgeExpired(ctx context.Context) (int64, error) {
	res := d.DB(ctx).Where("expires_at <= ?", d.now().UTC()).Delete(&models.QuoteSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge quote snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
