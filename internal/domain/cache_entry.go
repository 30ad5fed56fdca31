package domain

import "time"

// CacheEntry is a shared key-value row with expiry, backing the warm-up
// state cache and the warm-up lock. All request-handling processes read
// and write the same table, so the state is deployment-wide rather than
// per-process.
type CacheEntry struct {
	Key       string    `gorm:"type:text;primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Owner     string    `gorm:"type:text" json:"owner"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string {
	return "cache_entries"
}
