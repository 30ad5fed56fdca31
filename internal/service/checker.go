package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renzlucero/capstonehub/internal/logger"
	"github.com/renzlucero/capstonehub/internal/repository"
)

// ErrCheckerUnavailable is the single outcome surfaced to the user when the
// embedding backend or vector index fails during a check. Internal detail is
// logged, never echoed to the client.
var ErrCheckerUnavailable = errors.New("similarity check unavailable")

// ValidationError reports a rejected input field. No backend calls are made
// once validation fails.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CheckerConfig holds configuration for the similarity checker.
type CheckerConfig struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
	EmbedTimeout     time.Duration
}

// CheckerService answers "is this proposal too similar to something on
// file": canonical embedding text, one embed call, one category-filtered
// vector search, then a threshold partition.
type CheckerService struct {
	categories CategoryStore
	embedding  EmbeddingProvider
	index      VectorIndex
	logger     *logger.Logger
	cfg        CheckerConfig
}

// NewCheckerService creates a new similarity checker.
func NewCheckerService(categories CategoryStore, embedding EmbeddingProvider, index VectorIndex, log *logger.Logger, cfg CheckerConfig) *CheckerService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 20
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.80
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 60 * time.Second
	}
	return &CheckerService{
		categories: categories,
		embedding:  embedding,
		index:      index,
		logger:     log,
		cfg:        cfg,
	}
}

// CheckRequest is one proposal to screen. Limit and Threshold are optional;
// zero/nil select the configured defaults.
type CheckRequest struct {
	Title      string   `json:"title" binding:"required,max=255"`
	CategoryID int64    `json:"category_id" binding:"required"`
	Abstract   string   `json:"abstract" binding:"required"`
	Limit      int      `json:"limit" binding:"omitempty,min=1,max=20"`
	Threshold  *float64 `json:"threshold" binding:"omitempty,min=0,max=1"`
}

// SimilarityMatch is one ranked hit from the vector index. Ephemeral,
// produced per query and never persisted.
type SimilarityMatch struct {
	ID      int64                       `json:"id"`
	Score   float32                     `json:"score"`
	Payload *repository.CapstonePayload `json:"payload"`
}

// CheckQuery echoes the resolved inputs back to the caller.
type CheckQuery struct {
	Title      string  `json:"title"`
	CategoryID int64   `json:"category_id"`
	Category   string  `json:"category"`
	Abstract   string  `json:"abstract"`
	Threshold  float64 `json:"threshold"`
	Limit      int     `json:"limit"`
}

// CheckResult carries the threshold-filtered matches plus the full ranked
// list, so the caller can offer a "show all" fallback when nothing clears
// the threshold.
type CheckResult struct {
	Query   CheckQuery        `json:"query"`
	Matches []SimilarityMatch `json:"matches"`
	Raw     []SimilarityMatch `json:"raw"`
}

// Check runs the end-to-end similarity screen. Stateless per call.
func (s *CheckerService) Check(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(req.Abstract) == "" {
		return nil, &ValidationError{Field: "abstract", Message: "abstract is required"}
	}
	if req.Limit < 0 || req.Limit > s.cfg.MaxLimit {
		return nil, &ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", s.cfg.MaxLimit)}
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		return nil, &ValidationError{Field: "threshold", Message: "threshold must be between 0 and 1"}
	}

	exists, err := s.categories.Exists(ctx, req.CategoryID)
	if err != nil {
		logger.CtxError(ctx, "Category existence check failed: category_id=%d, error=%v", req.CategoryID, err)
		return nil, fmt.Errorf("%w: category lookup failed", ErrCheckerUnavailable)
	}
	if !exists {
		return nil, &ValidationError{Field: "category_id", Message: "category does not exist"}
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	threshold := s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	// Best-effort display-name resolution; a lookup failure falls back to
	// the placeholder and never fails the request.
	categoryName := UncategorizedName
	if name, err := s.categories.NameByID(ctx, req.CategoryID); err == nil {
		categoryName = name
	} else {
		logger.CtxWarn(ctx, "Category name lookup failed, using placeholder: category_id=%d, error=%v", req.CategoryID, err)
	}

	embedText := BuildEmbeddingText(req.Title, categoryName, req.Abstract)

	vector, err := s.embedding.Embed(ctx, embedText, s.cfg.EmbedTimeout)
	if err != nil {
		logger.CtxError(ctx, "Proposal embed failed: error=%v", err)
		return nil, fmt.Errorf("%w: embed failed", ErrCheckerUnavailable)
	}

	// The search is always restricted to the proposal's category.
	hits, err := s.index.Search(ctx, vector, limit, req.CategoryID)
	if err != nil {
		logger.CtxError(ctx, "Similarity search failed: category_id=%d, error=%v", req.CategoryID, err)
		return nil, fmt.Errorf("%w: search failed", ErrCheckerUnavailable)
	}

	raw := make([]SimilarityMatch, len(hits))
	for i, hit := range hits {
		raw[i] = SimilarityMatch{ID: hit.ID, Score: hit.Score, Payload: hit.Payload}
	}

	matches := make([]SimilarityMatch, 0, len(raw))
	for _, m := range raw {
		if float64(m.Score) >= threshold {
			matches = append(matches, m)
		}
	}

	logger.With(logger.Fields{logger.FieldCount: len(raw)}).
		Info(ctx, "Similarity check completed: category_id=%d, matches=%d, threshold=%.2f", req.CategoryID, len(matches), threshold)

	return &CheckResult{
		Query: CheckQuery{
			Title:      req.Title,
			CategoryID: req.CategoryID,
			Category:   categoryName,
			Abstract:   req.Abstract,
			Threshold:  threshold,
			Limit:      limit,
		},
		Matches: matches,
		Raw:     raw,
	}, nil
}
