package domain

import (
	"time"

	"gorm.io/gorm"
)

// EmbeddingStatus tracks whether a capstone record has been synced to the
// vector index. A failed status is a valid, retryable state for the record;
// it never blocks the record itself.
type EmbeddingStatus string

const (
	EmbeddingStatusPending EmbeddingStatus = "pending"
	EmbeddingStatusSynced  EmbeddingStatus = "synced"
	EmbeddingStatusFailed  EmbeddingStatus = "failed"
)

// Capstone represents one capstone project record. The relational store is
// the system of record; the vector index holds a derived point whose id
// equals Capstone.ID (1:1, documented invariant).
type Capstone struct {
	ID    int64  `gorm:"primaryKey" json:"id"`
	Title string `gorm:"type:text;not null;uniqueIndex:idx_capstones_title" json:"title"`

	Abstract              string `gorm:"type:text" json:"abstract"`
	StatementOfTheProblem string `gorm:"type:text" json:"statement_of_the_problem,omitempty"`
	Objectives            string `gorm:"type:text" json:"objectives,omitempty"`

	Authors      string `gorm:"type:text" json:"authors,omitempty"`
	Adviser      string `gorm:"type:text" json:"adviser,omitempty"`
	AcademicYear string `gorm:"type:text;size:9;index:idx_capstones_year" json:"academic_year,omitempty"`

	CategoryID int64     `gorm:"not null;index:idx_capstones_category" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	CreatedBy int64 `gorm:"index:idx_capstones_creator" json:"created_by"`

	// Manuscript document object key in S3-compatible storage, if uploaded.
	DocumentKey string `gorm:"type:text" json:"document_key,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	EmbeddingStatus EmbeddingStatus `gorm:"type:text;default:pending;index:idx_capstones_embedding_status" json:"embedding_status"`
	EmbeddingError  string          `gorm:"type:text" json:"embedding_error,omitempty"`
	EmbeddedAt      *time.Time      `json:"embedded_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the database table name for Capstone.
func (Capstone) TableName() string {
	return "capstones"
}
