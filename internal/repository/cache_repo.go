package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/renzlucero/capstonehub/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheRepository stores shared key-value entries with expiry and provides a
// lease-based lock on top of the same table. Every request-handling process
// points at the same database, so both the cached warm-up state and the lock
// are deployment-wide rather than per-process. A lock lease auto-expires, so
// a holder crashing mid-operation cannot deadlock later callers.
type CacheRepository struct {
	db *gorm.DB
}

// NewCacheRepository creates a new CacheRepository.
func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// GetTime reads a timestamp value. The second return is false when the key
// is absent or its entry has expired.
func (r *CacheRepository) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	var entry domain.CacheEntry
	err := r.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if time.Now().After(entry.ExpiresAt) {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, entry.Value)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// PutTime stores a timestamp value with the given expiry.
func (r *CacheRepository) PutTime(ctx context.Context, key string, value, expiresAt time.Time) error {
	entry := domain.CacheEntry{
		Key:       key,
		Value:     value.Format(time.RFC3339),
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&entry).Error
}

// AcquireLock tries to take the named lock for the given lease duration.
// Returns the owner token and true on success; ("", false) when another
// holder's lease is still valid. An expired lease is taken over atomically.
func (r *CacheRepository) AcquireLock(ctx context.Context, name string, lease time.Duration) (string, bool, error) {
	owner := uuid.New().String()
	now := time.Now()
	entry := domain.CacheEntry{
		Key:       name,
		Owner:     owner,
		ExpiresAt: now.Add(lease),
	}

	err := r.db.WithContext(ctx).Create(&entry).Error
	if err == nil {
		return owner, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", false, err
	}

	// Row exists: take over only if the previous lease expired. The WHERE
	// clause makes the takeover atomic under concurrent callers.
	res := r.db.WithContext(ctx).Model(&domain.CacheEntry{}).
		Where("key = ? AND expires_at <= ?", name, now).
		Updates(map[string]interface{}{
			"owner":      owner,
			"expires_at": now.Add(lease),
		})
	if res.Error != nil {
		return "", false, res.Error
	}
	if res.RowsAffected == 0 {
		return "", false, nil
	}
	return owner, true, nil
}

// ReleaseLock releases the named lock if this owner still holds it. Releasing
// a lock whose lease was already taken over is a no-op.
func (r *CacheRepository) ReleaseLock(ctx context.Context, name, owner string) error {
	return r.db.WithContext(ctx).
		Where("key = ? AND owner = ?", name, owner).
		Delete(&domain.CacheEntry{}).Error
}
