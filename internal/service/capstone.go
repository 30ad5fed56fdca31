package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renzlucero/capstonehub/internal/domain"
	"github.com/renzlucero/capstonehub/internal/logger"
	"github.com/renzlucero/capstonehub/internal/repository"
)

// ErrIndexingFailed means the capstone record was persisted but could not be
// embedded and indexed. The record stays visible with a failed embedding
// status and can be resynced; it is never rolled back for this.
var ErrIndexingFailed = errors.New("capstone indexing failed")

// CapstoneService owns the create-and-index flow, the resync path, and the
// archive lifecycle hooks that keep the vector index consistent with the
// active record set.
type CapstoneService struct {
	capstones  CapstoneStore
	categories CategoryStore
	embedding  EmbeddingProvider
	index      VectorIndex
	logger     *logger.Logger

	// embedTimeout is the long, cold-start-tolerant timeout used when
	// indexing a record.
	embedTimeout time.Duration
}

// NewCapstoneService creates a new capstone service.
func NewCapstoneService(capstones CapstoneStore, categories CategoryStore, embedding EmbeddingProvider, index VectorIndex, log *logger.Logger, embedTimeout time.Duration) *CapstoneService {
	if embedTimeout <= 0 {
		embedTimeout = 90 * time.Second
	}
	return &CapstoneService{
		capstones:    capstones,
		categories:   categories,
		embedding:    embedding,
		index:        index,
		logger:       log,
		embedTimeout: embedTimeout,
	}
}

// CreateInput collects the fields for a new capstone record.
type CreateInput struct {
	Title                 string
	CategoryID            int64
	Abstract              string
	AcademicYear          string
	Authors               string
	Adviser               string
	StatementOfTheProblem string
	Objectives            string
	CreatedBy             int64
}

// Create persists a new capstone record and then embeds and indexes it.
// The relational write commits first in its own transaction; indexing
// failure leaves the record in place with embedding_status=failed and
// returns ErrIndexingFailed. If the vector point was already upserted when
// a later step fails, the point is deleted again (compensation) so a
// half-synced state is never searchable.
func (s *CapstoneService) Create(ctx context.Context, input *CreateInput) (*domain.Capstone, error) {
	capstone := &domain.Capstone{
		Title:                 strings.TrimSpace(input.Title),
		CategoryID:            input.CategoryID,
		Abstract:              strings.TrimSpace(input.Abstract),
		AcademicYear:          strings.TrimSpace(input.AcademicYear),
		Authors:               strings.TrimSpace(input.Authors),
		Adviser:               strings.TrimSpace(input.Adviser),
		StatementOfTheProblem: input.StatementOfTheProblem,
		Objectives:            input.Objectives,
		CreatedBy:             input.CreatedBy,
		IsActive:              true,
		EmbeddingStatus:       domain.EmbeddingStatusPending,
	}

	if err := s.capstones.Create(ctx, capstone); err != nil {
		return nil, err
	}

	ctx = logger.SetCapstoneID(ctx, capstone.ID)

	idxErr := s.indexCapstone(ctx, capstone)
	if idxErr == nil {
		logger.CtxInfo(ctx, "Capstone created and indexed: title=%q", capstone.Title)
	}

	// indexCapstone wrote the final embedding status to the row; reload so
	// the caller sees that state, not the pending snapshot from the insert.
	if fresh, err := s.capstones.GetByID(ctx, capstone.ID); err == nil {
		capstone = fresh
	} else {
		logger.CtxWarn(ctx, "Reload after indexing failed: error=%v", err)
	}
	return capstone, idxErr
}

// Resync re-embeds and re-upserts one record. Used for failed or pending
// records and after restore/update.
func (s *CapstoneService) Resync(ctx context.Context, id int64) error {
	capstone, err := s.capstones.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ctx = logger.SetCapstoneID(ctx, capstone.ID)
	return s.indexCapstone(ctx, capstone)
}

// ResyncBatch re-indexes up to limit records whose embedding is pending or
// failed, oldest first. Returns the number synced and the number failed.
func (s *CapstoneService) ResyncBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	capstones, err := s.capstones.ListByEmbeddingStatus(ctx,
		[]domain.EmbeddingStatus{domain.EmbeddingStatusPending, domain.EmbeddingStatusFailed}, limit)
	if err != nil {
		return 0, 0, err
	}

	for i := range capstones {
		c := &capstones[i]
		if err := s.indexCapstone(logger.SetCapstoneID(ctx, c.ID), c); err != nil {
			failed++
			continue
		}
		synced++
	}

	return synced, failed, nil
}

// indexCapstone runs embed -> upsert -> mark-synced for one record,
// compensating the upsert when a later step fails.
func (s *CapstoneService) indexCapstone(ctx context.Context, capstone *domain.Capstone) error {
	categoryName := UncategorizedName
	if capstone.Category != nil && capstone.Category.Name != "" {
		categoryName = capstone.Category.Name
	} else if name, err := s.categories.NameByID(ctx, capstone.CategoryID); err == nil {
		categoryName = name
	} else {
		logger.CtxWarn(ctx, "Category name lookup failed, using placeholder: category_id=%d, error=%v", capstone.CategoryID, err)
	}

	embedText := BuildEmbeddingText(capstone.Title, categoryName, capstone.Abstract)

	vector, err := s.embedding.Embed(ctx, embedText, s.embedTimeout)
	if err != nil {
		logger.CtxError(ctx, "Capstone embed failed: error=%v", err)
		return s.failIndexing(ctx, capstone.ID, err)
	}

	payload := &repository.CapstonePayload{
		CapstoneID: capstone.ID,
		Title:      capstone.Title,
		CategoryID: capstone.CategoryID,
		Category:   categoryName,
		Abstract:   capstone.Abstract,
		UpdatedAt:  capstone.UpdatedAt.Format(time.RFC3339),
	}

	if err := s.index.Upsert(ctx, capstone.ID, vector, payload); err != nil {
		logger.CtxError(ctx, "Capstone upsert failed: error=%v", err)
		return s.failIndexing(ctx, capstone.ID, err)
	}

	if err := s.capstones.MarkSynced(ctx, capstone.ID); err != nil {
		// The point is already searchable; remove it so a half-synced state
		// does not surface in results. Compensation failure is logged but
		// the original error is what the caller sees.
		logger.CtxError(ctx, "Failed to mark capstone synced, compensating: error=%v", err)
		if derr := s.index.Delete(ctx, capstone.ID); derr != nil {
			logger.CtxWarn(ctx, "Compensating vector delete failed: error=%v", derr)
		}
		return s.failIndexing(ctx, capstone.ID, err)
	}

	return nil
}

// failIndexing records the failure on the capstone row and wraps the cause.
func (s *CapstoneService) failIndexing(ctx context.Context, id int64, cause error) error {
	if err := s.capstones.MarkEmbeddingFailed(ctx, id, cause.Error()); err != nil {
		logger.CtxWarn(ctx, "Failed to record embedding failure: error=%v", err)
	}
	return fmt.Errorf("%w: %v", ErrIndexingFailed, cause)
}

// UpdateInput collects editable fields for an existing record.
type UpdateInput struct {
	Title                 string
	CategoryID            int64
	Abstract              string
	AcademicYear          string
	Authors               string
	Adviser               string
	StatementOfTheProblem string
	Objectives            string
}

// Update saves the record and re-indexes it best-effort: an indexing failure
// leaves the record updated with a failed embedding status, and the caller
// still gets the updated record.
func (s *CapstoneService) Update(ctx context.Context, id int64, input *UpdateInput) (*domain.Capstone, error) {
	capstone, err := s.capstones.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	capstone.Title = strings.TrimSpace(input.Title)
	capstone.CategoryID = input.CategoryID
	capstone.Abstract = strings.TrimSpace(input.Abstract)
	capstone.AcademicYear = strings.TrimSpace(input.AcademicYear)
	capstone.Authors = strings.TrimSpace(input.Authors)
	capstone.Adviser = strings.TrimSpace(input.Adviser)
	capstone.StatementOfTheProblem = input.StatementOfTheProblem
	capstone.Objectives = input.Objectives
	capstone.Category = nil

	if err := s.capstones.Update(ctx, capstone); err != nil {
		return nil, err
	}

	if err := s.Resync(ctx, id); err != nil {
		logger.CtxWarn(ctx, "Re-index after update failed: capstone_id=%d, error=%v", id, err)
	}

	return s.capstones.GetByID(ctx, id)
}

// Archive soft-deletes the record and removes its vector point so an
// archived capstone no longer appears as a similarity match. The point
// delete is best-effort: the archive itself never fails because of it.
func (s *CapstoneService) Archive(ctx context.Context, id int64) error {
	if err := s.capstones.Archive(ctx, id); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, id); err != nil {
		logger.CtxWarn(ctx, "Vector delete on archive failed: capstone_id=%d, error=%v", id, err)
	}
	return nil
}

// Restore un-archives the record, resets its embedding status, and attempts
// an immediate resync. A resync failure leaves the record pending/failed for
// a later retry and does not fail the restore.
func (s *CapstoneService) Restore(ctx context.Context, id int64) error {
	if err := s.capstones.Restore(ctx, id); err != nil {
		return err
	}
	if err := s.capstones.MarkPending(ctx, id); err != nil {
		return err
	}
	if err := s.Resync(ctx, id); err != nil {
		logger.CtxWarn(ctx, "Re-index after restore failed: capstone_id=%d, error=%v", id, err)
	}
	return nil
}
