package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/renzlucero/capstonehub/internal/logger"
	"github.com/renzlucero/capstonehub/internal/repository"
)

func newCheckerService(categories *fakeCategoryStore, embedder *stubEmbedder, index *fakeVectorIndex) *CheckerService {
	return NewCheckerService(categories, embedder, index, logger.NewDefault(), CheckerConfig{
		DefaultLimit:     5,
		MaxLimit:         20,
		DefaultThreshold: 0.80,
	})
}

func float64Ptr(v float64) *float64 {
	return &v
}

func TestCheckValidation(t *testing.T) {
	testCases := []struct {
		name      string
		req       CheckRequest
		wantField string
	}{
		{
			name:      "blank title",
			req:       CheckRequest{Title: "   ", CategoryID: 1, Abstract: "An abstract."},
			wantField: "title",
		},
		{
			name:      "blank abstract",
			req:       CheckRequest{Title: "A Title", CategoryID: 1, Abstract: "\n\t"},
			wantField: "abstract",
		},
		{
			name:      "limit over maximum",
			req:       CheckRequest{Title: "A Title", CategoryID: 1, Abstract: "An abstract.", Limit: 50},
			wantField: "limit",
		},
		{
			name:      "threshold above one",
			req:       CheckRequest{Title: "A Title", CategoryID: 1, Abstract: "An abstract.", Threshold: float64Ptr(1.5)},
			wantField: "threshold",
		},
		{
			name:      "unknown category",
			req:       CheckRequest{Title: "A Title", CategoryID: 99, Abstract: "An abstract."},
			wantField: "category_id",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			categories := &fakeCategoryStore{names: map[int64]string{1: "IoT"}}
			embedder := &stubEmbedder{}
			index := &fakeVectorIndex{}
			s := newCheckerService(categories, embedder, index)

			_, err := s.Check(context.Background(), &tc.req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.wantField {
				t.Errorf("Field: got %q, want %q", vErr.Field, tc.wantField)
			}
			if embedder.calls() != 0 {
				t.Error("Validation failure must not reach the embedding backend")
			}
		})
	}
}

func TestCheckBackendFailuresCollapse(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(categories *fakeCategoryStore, embedder *stubEmbedder, index *fakeVectorIndex)
	}{
		{
			name: "category lookup failed",
			setup: func(categories *fakeCategoryStore, embedder *stubEmbedder, index *fakeVectorIndex) {
				categories.existsErr = errors.New("db down")
			},
		},
		{
			name: "embed failed",
			setup: func(categories *fakeCategoryStore, embedder *stubEmbedder, index *fakeVectorIndex) {
				embedder.embedErr = fmt.Errorf("%w: refused", ErrEmbeddingUnavailable)
			},
		},
		{
			name: "search failed",
			setup: func(categories *fakeCategoryStore, embedder *stubEmbedder, index *fakeVectorIndex) {
				index.searchErr = &repository.PointsError{Kind: repository.KindSearchFailed, Err: errors.New("grpc unavailable")}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			categories := &fakeCategoryStore{names: map[int64]string{1: "IoT"}}
			embedder := &stubEmbedder{}
			index := &fakeVectorIndex{}
			tc.setup(categories, embedder, index)
			s := newCheckerService(categories, embedder, index)

			_, err := s.Check(context.Background(), &CheckRequest{Title: "A Title", CategoryID: 1, Abstract: "An abstract."})
			if !errors.Is(err, ErrCheckerUnavailable) {
				t.Errorf("Expected ErrCheckerUnavailable, got %v", err)
			}
		})
	}
}

func TestCheckThresholdPartition(t *testing.T) {
	hits := []repository.ScoredPoint{
		{ID: 11, Score: 0.93, Payload: &repository.CapstonePayload{CapstoneID: 11, Title: "Very close"}},
		{ID: 7, Score: 0.81, Payload: &repository.CapstonePayload{CapstoneID: 7, Title: "Close enough"}},
		{ID: 3, Score: 0.42, Payload: &repository.CapstonePayload{CapstoneID: 3, Title: "Distant"}},
	}

	categories := &fakeCategoryStore{names: map[int64]string{2: "Machine Learning"}}
	embedder := &stubEmbedder{}
	index := &fakeVectorIndex{hits: hits}
	s := newCheckerService(categories, embedder, index)

	result, err := s.Check(context.Background(), &CheckRequest{
		Title:      "A Title",
		CategoryID: 2,
		Abstract:   "An abstract.",
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if len(result.Raw) != 3 {
		t.Fatalf("Raw: got %d hits, want 3", len(result.Raw))
	}
	if len(result.Matches) != 2 {
		t.Fatalf("Matches: got %d, want 2 above the 0.80 threshold", len(result.Matches))
	}
	// Raw order (most similar first) must be preserved in both lists.
	if result.Raw[0].ID != 11 || result.Raw[2].ID != 3 {
		t.Errorf("Raw order changed: %+v", result.Raw)
	}
	if result.Matches[0].ID != 11 || result.Matches[1].ID != 7 {
		t.Errorf("Matches order changed: %+v", result.Matches)
	}

	if result.Query.Category != "Machine Learning" {
		t.Errorf("Query category: got %q", result.Query.Category)
	}
	if result.Query.Threshold != 0.80 {
		t.Errorf("Query threshold: got %v, want default 0.80", result.Query.Threshold)
	}
	if result.Query.Limit != 5 {
		t.Errorf("Query limit: got %d, want default 5", result.Query.Limit)
	}

	if index.gotCategory != 2 {
		t.Errorf("Search category filter: got %d, want 2", index.gotCategory)
	}
	if index.gotLimit != 5 {
		t.Errorf("Search limit: got %d, want 5", index.gotLimit)
	}
}

func TestCheckCustomThresholdAndLimit(t *testing.T) {
	hits := []repository.ScoredPoint{
		{ID: 1, Score: 0.70},
		{ID: 2, Score: 0.55},
		{ID: 3, Score: 0.10},
	}

	categories := &fakeCategoryStore{names: map[int64]string{1: "IoT"}}
	index := &fakeVectorIndex{hits: hits}
	s := newCheckerService(categories, &stubEmbedder{}, index)

	result, err := s.Check(context.Background(), &CheckRequest{
		Title:      "A Title",
		CategoryID: 1,
		Abstract:   "An abstract.",
		Limit:      10,
		Threshold:  float64Ptr(0.5),
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Errorf("Matches: got %d, want 2 above 0.5", len(result.Matches))
	}
	if index.gotLimit != 10 {
		t.Errorf("Search limit: got %d, want 10", index.gotLimit)
	}
	if result.Query.Threshold != 0.5 {
		t.Errorf("Query threshold: got %v", result.Query.Threshold)
	}
}

func TestCheckNoMatchesStillReturnsRaw(t *testing.T) {
	hits := []repository.ScoredPoint{
		{ID: 1, Score: 0.31},
		{ID: 2, Score: 0.12},
	}

	categories := &fakeCategoryStore{names: map[int64]string{1: "IoT"}}
	s := newCheckerService(categories, &stubEmbedder{}, &fakeVectorIndex{hits: hits})

	result, err := s.Check(context.Background(), &CheckRequest{Title: "A Title", CategoryID: 1, Abstract: "An abstract."})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Errorf("Matches: got %d, want 0", len(result.Matches))
	}
	if len(result.Raw) != 2 {
		t.Errorf("Raw: got %d, want 2 for the show-all fallback", len(result.Raw))
	}
}

func TestCheckCategoryNameLookupIsBestEffort(t *testing.T) {
	categories := &fakeCategoryStore{names: map[int64]string{1: "IoT"}, nameErr: errors.New("transient")}
	s := newCheckerService(categories, &stubEmbedder{}, &fakeVectorIndex{})

	result, err := s.Check(context.Background(), &CheckRequest{Title: "A Title", CategoryID: 1, Abstract: "An abstract."})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Query.Category != UncategorizedName {
		t.Errorf("Category fallback: got %q, want %q", result.Query.Category, UncategorizedName)
	}
}
