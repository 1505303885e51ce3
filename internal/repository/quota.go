package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mealforge/mealforge-api/internal/models"
	"github.com/mealforge/mealforge-api/internal/quota"
	"github.com/mealforge/mealforge-api/internal/storage"
)

// QuotaRepository persists per-identity tier assignments and daily counters.
// It implements quota.Store.
type QuotaRepository struct {
	db *storage.Postgres
}

func NewQuotaRepository(db *storage.Postgres) *QuotaRepository {
	return &QuotaRepository{db: db}
}

var _ quota.Store = (*QuotaRepository)(nil)

func (r *QuotaRepository) GetTierAndCounters(ctx context.Context, identity string) (quota.Counters, error) {
	var rec models.UserQuota
	err := r.db.DB.WithContext(ctx).
		Where("identity = ?", identity).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quota.Counters{}, quota.ErrNotFound
	}
	if err != nil {
		return quota.Counters{}, err
	}

	return quota.Counters{
		Tier:            rec.Tier,
		RequestsToday:   rec.RequestsToday,
		LastRequestDate: rec.LastRequestDate,
	}, nil
}

func (r *QuotaRepository) SetCounters(ctx context.Context, identity string, requestsToday int, lastRequestDate time.Time) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.UserQuota{}).
		Where("identity = ?", identity).
		Updates(map[string]interface{}{
			"requests_today":    requestsToday,
			"last_request_date": lastRequestDate,
		}).Error
}

// IncrementDaily adds one to the identity's counter for day in a single
// upsert and returns the post-increment value. A stored date other than day
// means a UTC rollover happened since the last request, so the counter
// restarts at 1. The row is created on first use; the tier column is left
// untouched for existing rows.
func (r *QuotaRepository) IncrementDaily(ctx context.Context, identity string, day time.Time) (int, error) {
	query := `
		INSERT INTO user_quotas (identity, tier, requests_today, last_request_date, created_at, updated_at)
		VALUES (?, 'free', 1, ?, NOW(), NOW())
		ON CONFLICT (identity) DO UPDATE SET
			requests_today = CASE
				WHEN user_quotas.last_request_date = EXCLUDED.last_request_date
				THEN user_quotas.requests_today + 1
				ELSE 1
			END,
			last_request_date = EXCLUDED.last_request_date,
			updated_at = NOW()
		RETURNING requests_today
	`

	var count int
	err := r.db.DB.WithContext(ctx).Raw(query, identity, day).Scan(&count).Error
	return count, err
}

// DecrementDaily backs out one increment, used when the gate refunds a denied
// request. The date guard keeps a refund issued just before midnight from
// touching the next day's counter.
func (r *QuotaRepository) DecrementDaily(ctx context.Context, identity string, day time.Time) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.UserQuota{}).
		Where("identity = ? AND last_request_date = ?", identity, day).
		Update("requests_today", gorm.Expr("GREATEST(requests_today - 1, 0)")).Error
}

// Find returns the full quota record for admin inspection, or nil when the
// identity is unknown.
func (r *QuotaRepository) Find(ctx context.Context, identity string) (*models.UserQuota, error) {
	var rec models.UserQuota
	err := r.db.DB.WithContext(ctx).
		Where("identity = ?", identity).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	return &rec, err
}

// SetTier assigns a tier to an identity, creating the quota row if it does
// not exist yet. Counters are preserved across tier changes.
func (r *QuotaRepository) SetTier(ctx context.Context, identity, tier string) error {
	query := `
		INSERT INTO user_quotas (identity, tier, requests_today, last_request_date, created_at, updated_at)
		VALUES (?, ?, 0, ?, NOW(), NOW())
		ON CONFLICT (identity) DO UPDATE SET
			tier = EXCLUDED.tier,
			updated_at = NOW()
	`

	return r.db.DB.WithContext(ctx).Exec(query, identity, tier, quota.DayOf(time.Now())).Error
}
