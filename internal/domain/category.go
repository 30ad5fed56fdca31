package domain

import "time"

// Category groups capstone records. Categories are deactivated, never
// permanently deleted, so historical records keep a valid reference.
type Category struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null;uniqueIndex:idx_categories_name" json:"name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string {
	return "categories"
}
