package repository

import (
	"context"
	"errors"

	"github.com/renzlucero/capstonehub/internal/domain"
	"gorm.io/gorm"
)

// ErrCategoryNameTaken indicates the unique category name constraint was violated.
var ErrCategoryNameTaken = errors.New("category name already exists")

// CategoryRepository handles category operations.
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	err := r.db.WithContext(ctx).Create(category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCategoryNameTaken
	}
	return err
}

// Update saves changed fields on an existing category.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	err := r.db.WithContext(ctx).Save(category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCategoryNameTaken
	}
	return err
}

// GetByID retrieves a category by id.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	var category domain.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// NameByID resolves a category id to its display name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: category id.
// Returns:
//   - string: category name.
//   - error: gorm.ErrRecordNotFound when no such category exists.
func (r *CategoryRepository) NameByID(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.db.WithContext(ctx).Model(&domain.Category{}).
		Where("id = ?", id).
		Pluck("name", &name).Error
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", gorm.ErrRecordNotFound
	}
	return name, nil
}

// Exists reports whether a category with the given id exists.
func (r *CategoryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Category{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActive returns active categories ordered by name, for form dropdowns.
func (r *CategoryRepository) ListActive(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// List returns a page of categories filtered by an optional name search.
func (r *CategoryRepository) List(ctx context.Context, search string, page, perPage int) ([]domain.Category, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 50 {
		perPage = 50
	}

	query := r.db.WithContext(ctx).Model(&domain.Category{})
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var categories []domain.Category
	if err := query.
		Order("name ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&categories).Error; err != nil {
		return nil, 0, err
	}

	return categories, total, nil
}

// SetActive toggles the active flag.
func (r *CategoryRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", id).
		Update("is_active", active).Error
}
