package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/renzlucero/capstonehub/internal/logger"
)

const (
	warmedUntilKey = "ollama:warmed_until"
	warmupLockKey  = "ollama:warmup_lock"
)

// Warmup outcome reasons.
const (
	ReasonAlreadyWarmed        = "already_warmed"
	ReasonAlreadyWarming       = "already_warming"
	ReasonEmbedFailed          = "embed_failed"
	ReasonTimeoutOrUnreachable = "timeout_or_unreachable"
)

// WarmupConfig holds configuration for the warm-up tracker.
type WarmupConfig struct {
	Prompt       string
	Timeout      time.Duration
	LockLease    time.Duration
	WarmDuration time.Duration
}

// WarmupService coordinates the cold-start warm-up of the embedding backend
// across concurrent callers, in all processes sharing the cache store. The
// lock guarantees at most one in-flight warm-up embed at any time; everyone
// else gets an immediate already_warming outcome instead of duplicating the
// expensive call.
type WarmupService struct {
	embedding EmbeddingProvider
	cache     WarmupCache
	logger    *logger.Logger
	cfg       WarmupConfig

	// now is replaceable in tests.
	now func() time.Time
}

// NewWarmupService creates a new warm-up tracker.
func NewWarmupService(embedding EmbeddingProvider, cache WarmupCache, log *logger.Logger, cfg WarmupConfig) *WarmupService {
	if cfg.Prompt == "" {
		cfg.Prompt = "warmup"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.LockLease <= 0 {
		cfg.LockLease = 30 * time.Second
	}
	if cfg.WarmDuration <= 0 {
		cfg.WarmDuration = 10 * time.Minute
	}
	return &WarmupService{
		embedding: embedding,
		cache:     cache,
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// StatusResult is the readiness snapshot exposed to the UI.
type StatusResult struct {
	OllamaReachable bool       `json:"ollama_reachable"`
	ModelAvailable  bool       `json:"model_available"`
	Model           string     `json:"model"`
	Warmed          bool       `json:"warmed"`
	WarmedUntil     *time.Time `json:"warmed_until,omitempty"`
}

// WarmupResult is the outcome of one warm-up attempt.
type WarmupResult struct {
	Warmed      bool       `json:"warmed"`
	Reason      string     `json:"reason,omitempty"`
	WarmedUntil *time.Time `json:"warmed_until,omitempty"`
}

// Status performs a cheap reachability probe and reads the cached warm
// state. It never returns an error; any failure collapses to an
// all-false snapshot.
func (s *WarmupService) Status(ctx context.Context) *StatusResult {
	result := &StatusResult{Model: s.embedding.Model()}

	if until, ok := s.warmedUntil(ctx); ok {
		result.Warmed = true
		result.WarmedUntil = &until
	}

	models, err := s.embedding.ListModels(ctx)
	if err != nil {
		logger.CtxDebug(ctx, "Readiness probe failed: error=%v", err)
		return &StatusResult{Model: s.embedding.Model()}
	}

	result.OllamaReachable = true
	for _, name := range models {
		if strings.Contains(name, s.embedding.Model()) {
			result.ModelAvailable = true
			break
		}
	}

	return result
}

// Warmup wakes the embedding backend with one real embed call, unless it is
// already warm or another caller is warming it right now. A concurrent
// collision is a defined successful outcome (already_warming), not an error.
func (s *WarmupService) Warmup(ctx context.Context) *WarmupResult {
	if until, ok := s.warmedUntil(ctx); ok {
		return &WarmupResult{Warmed: true, Reason: ReasonAlreadyWarmed, WarmedUntil: &until}
	}

	owner, acquired, err := s.cache.AcquireLock(ctx, warmupLockKey, s.cfg.LockLease)
	if err != nil {
		logger.CtxError(ctx, "Warm-up lock acquisition failed: error=%v", err)
		return &WarmupResult{Warmed: false, Reason: ReasonTimeoutOrUnreachable}
	}
	if !acquired {
		return &WarmupResult{Warmed: false, Reason: ReasonAlreadyWarming}
	}
	defer func() {
		if err := s.cache.ReleaseLock(ctx, warmupLockKey, owner); err != nil {
			logger.CtxWarn(ctx, "Warm-up lock release failed: error=%v", err)
		}
	}()

	start := s.now()
	_, err = s.embedding.Embed(ctx, s.cfg.Prompt, s.cfg.Timeout)
	if err != nil {
		logger.CtxWarn(ctx, "Warm-up embed failed: duration=%s, error=%v", s.now().Sub(start), err)
		if errors.Is(err, ErrEmbeddingUnavailable) {
			return &WarmupResult{Warmed: false, Reason: ReasonTimeoutOrUnreachable}
		}
		return &WarmupResult{Warmed: false, Reason: ReasonEmbedFailed}
	}

	until := s.now().Add(s.cfg.WarmDuration)
	if err := s.cache.PutTime(ctx, warmedUntilKey, until, until); err != nil {
		// The backend is warm even if recording it failed; at worst the next
		// caller repeats one warm-up.
		logger.CtxWarn(ctx, "Failed to cache warmed_until: error=%v", err)
	}

	logger.CtxInfo(ctx, "Embedding backend warmed: model=%s, warmed_until=%s", s.embedding.Model(), until.Format(time.RFC3339))
	return &WarmupResult{Warmed: true, WarmedUntil: &until}
}

// warmedUntil reads the cached timestamp; absent, expired, or unreadable
// all mean "not warmed".
func (s *WarmupService) warmedUntil(ctx context.Context) (time.Time, bool) {
	until, ok, err := s.cache.GetTime(ctx, warmedUntilKey)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to read warmed_until cache: error=%v", err)
		return time.Time{}, false
	}
	if !ok || !s.now().Before(until) {
		return time.Time{}, false
	}
	return until, true
}
