package service

import (
	"context"
	"time"

	"github.com/renzlucero/capstonehub/internal/domain"
	"github.com/renzlucero/capstonehub/internal/repository"
)

// EmbeddingProvider turns text into fixed-length vectors and exposes the
// backend's model inventory for readiness probes.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, timeout time.Duration) ([]float32, error)
	ListModels(ctx context.Context) ([]string, error)
	Model() string
}

// VectorIndex manages capstone points in the external vector collection.
type VectorIndex interface {
	Upsert(ctx context.Context, id int64, vector []float32, payload *repository.CapstonePayload) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, vector []float32, limit int, categoryID int64) ([]repository.ScoredPoint, error)
}

// CategoryStore is the slice of the relational store the pipeline needs:
// existence checks for validation and id-to-name resolution for display.
type CategoryStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
	NameByID(ctx context.Context, id int64) (string, error)
}

// CapstoneStore is the capstone persistence surface used by the services.
type CapstoneStore interface {
	Create(ctx context.Context, capstone *domain.Capstone) error
	Update(ctx context.Context, capstone *domain.Capstone) error
	GetByID(ctx context.Context, id int64) (*domain.Capstone, error)
	GetByIDWithArchived(ctx context.Context, id int64) (*domain.Capstone, error)
	List(ctx context.Context, q repository.CapstoneQuery) ([]domain.Capstone, int64, error)
	ListByEmbeddingStatus(ctx context.Context, statuses []domain.EmbeddingStatus, limit int) ([]domain.Capstone, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkEmbeddingFailed(ctx context.Context, id int64, cause string) error
	MarkPending(ctx context.Context, id int64) error
	SetDocumentKey(ctx context.Context, id int64, key string) error
	SetActive(ctx context.Context, id int64, active bool) error
	Archive(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

// WarmupCache is the shared TTL cache plus lease-lock used by the warm-up
// tracker. Implementations must be visible across all request-handling
// processes, not just in-memory.
type WarmupCache interface {
	GetTime(ctx context.Context, key string) (time.Time, bool, error)
	PutTime(ctx context.Context, key string, value, expiresAt time.Time) error
	AcquireLock(ctx context.Context, name string, lease time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}
