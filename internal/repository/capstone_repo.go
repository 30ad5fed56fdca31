package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/renzlucero/capstonehub/internal/domain"
	"gorm.io/gorm"
)

// ErrTitleTaken indicates the unique title constraint was violated.
var ErrTitleTaken = errors.New("capstone title already exists")

// CapstoneRepository handles capstone record operations.
type CapstoneRepository struct {
	db *gorm.DB
}

// NewCapstoneRepository creates a new CapstoneRepository.
func NewCapstoneRepository(db *gorm.DB) *CapstoneRepository {
	return &CapstoneRepository{db: db}
}

// CapstoneQuery collects list filters. Zero values mean "no filter".
type CapstoneQuery struct {
	Search       string
	CategoryID   int64
	AcademicYear string
	Page         int
	PerPage      int
	Archived     bool
}

// Create inserts a new capstone record inside its own transaction. The
// transaction is scoped to just this write; embedding and indexing happen
// after commit so an indexing failure never rolls the record back.
func (r *CapstoneRepository) Create(ctx context.Context, capstone *domain.Capstone) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(capstone).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrTitleTaken
		}
		return fmt.Errorf("failed to create capstone: %w", err)
	}
	return nil
}

// Update saves changed fields on an existing record.
func (r *CapstoneRepository) Update(ctx context.Context, capstone *domain.Capstone) error {
	err := r.db.WithContext(ctx).Save(capstone).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTitleTaken
	}
	return err
}

// GetByID retrieves a capstone with its category, excluding archived records.
func (r *CapstoneRepository) GetByID(ctx context.Context, id int64) (*domain.Capstone, error) {
	var capstone domain.Capstone
	if err := r.db.WithContext(ctx).Preload("Category").First(&capstone, id).Error; err != nil {
		return nil, err
	}
	return &capstone, nil
}

// GetByIDWithArchived retrieves a capstone by id including soft-deleted records.
func (r *CapstoneRepository) GetByIDWithArchived(ctx context.Context, id int64) (*domain.Capstone, error) {
	var capstone domain.Capstone
	if err := r.db.WithContext(ctx).Unscoped().Preload("Category").First(&capstone, id).Error; err != nil {
		return nil, err
	}
	return &capstone, nil
}

// List returns a page of capstone records plus the total count for the query.
func (r *CapstoneRepository) List(ctx context.Context, q CapstoneQuery) ([]domain.Capstone, int64, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 50 {
		perPage = 50
	}

	query := r.db.WithContext(ctx).Model(&domain.Capstone{}).Preload("Category")
	if q.Archived {
		query = query.Unscoped().Where("deleted_at IS NOT NULL")
	}
	if q.CategoryID > 0 {
		query = query.Where("category_id = ?", q.CategoryID)
	}
	if q.AcademicYear != "" {
		query = query.Where("academic_year = ?", q.AcademicYear)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where(
			"title LIKE ? OR abstract LIKE ? OR authors LIKE ? OR adviser LIKE ? OR academic_year LIKE ?",
			like, like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "id DESC"
	if q.Archived {
		order = "deleted_at DESC"
	}

	var capstones []domain.Capstone
	if err := query.
		Order(order).
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&capstones).Error; err != nil {
		return nil, 0, err
	}

	return capstones, total, nil
}

// ListByEmbeddingStatus returns records with the given embedding status,
// oldest first, for batch resync.
func (r *CapstoneRepository) ListByEmbeddingStatus(ctx context.Context, statuses []domain.EmbeddingStatus, limit int) ([]domain.Capstone, error) {
	var capstones []domain.Capstone
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Where("embedding_status IN ?", statuses).
		Order("id ASC").
		Limit(limit).
		Find(&capstones).Error; err != nil {
		return nil, err
	}
	return capstones, nil
}

// MarkSynced records a successful vector index sync.
func (r *CapstoneRepository) MarkSynced(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Capstone{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding_status": domain.EmbeddingStatusSynced,
			"embedding_error":  "",
			"embedded_at":      &now,
		}).Error
}

// MarkEmbeddingFailed records an indexing failure so operators can see which
// records need a resync. The record itself stays visible and retryable.
func (r *CapstoneRepository) MarkEmbeddingFailed(ctx context.Context, id int64, cause string) error {
	return r.db.WithContext(ctx).Model(&domain.Capstone{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding_status": domain.EmbeddingStatusFailed,
			"embedding_error":  cause,
		}).Error
}

// MarkPending resets the embedding status, queueing the record for resync.
func (r *CapstoneRepository) MarkPending(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&domain.Capstone{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding_status": domain.EmbeddingStatusPending,
			"embedding_error":  "",
			"embedded_at":      nil,
		}).Error
}

// SetDocumentKey stores the manuscript object key for a record.
func (r *CapstoneRepository) SetDocumentKey(ctx context.Context, id int64, key string) error {
	return r.db.WithContext(ctx).Model(&domain.Capstone{}).Where("id = ?", id).
		Update("document_key", key).Error
}

// SetActive toggles the active flag.
func (r *CapstoneRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.db.WithContext(ctx).Model(&domain.Capstone{}).Where("id = ?", id).
		Update("is_active", active).Error
}

// Archive soft-deletes a capstone record.
func (r *CapstoneRepository) Archive(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Capstone{}, id).Error
}

// Restore un-archives a soft-deleted capstone record.
func (r *CapstoneRepository) Restore(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Unscoped().Model(&domain.Capstone{}).
		Where("id = ?", id).
		Update("deleted_at", nil).Error
}
