package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

const activeTermCacheKey = "terms:active"

type termRepository interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindActive(ctx context.Context) (*models.Term, error)
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	SetActive(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

type termCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TermService manages the term lifecycle. The active term is cached; any
// lifecycle change invalidates the cache before returning.
type TermService struct {
	repo   termRepository
	cache  termCache
	audits auditRecorder
	cfg    config.CacheConfig
	logger *zap.Logger
}

// NewTermService constructs TermService. cache may be nil.
func NewTermService(repo termRepository, cache termCache, audits auditRecorder, cfg config.CacheConfig, logger *zap.Logger) *TermService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, cache: cache, audits: audits, cfg: cfg, logger: logger}
}

// List returns terms with pagination metadata.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return terms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one term.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// GetActive returns the active term, from cache when warm.
func (s *TermService) GetActive(ctx context.Context) (*models.Term, error) {
	if s.cacheEnabled() {
		var cached models.Term
		if err := s.cache.Get(ctx, activeTermCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	term, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, activeTermCacheKey, term, s.cfg.TTL); err != nil {
			s.logger.Warn("failed to cache active term", zap.Error(err))
		}
	}
	return term, nil
}

// Activate makes the term the single active one.
func (s *TermService) Activate(ctx context.Context, id string, actorID *string) (*models.Term, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if err := s.repo.SetActive(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	s.invalidate(ctx)

	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload term")
	}
	s.audit(ctx, models.AuditActionActivateTerm, term, actorID)
	s.logger.Info("term activated", zap.String("term_id", id))
	return term, nil
}

// Deactivate marks the term inactive, the precondition for closing it.
func (s *TermService) Deactivate(ctx context.Context, id string, actorID *string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if !term.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "term is not active")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate term")
	}
	s.invalidate(ctx)

	term.IsActive = false
	s.audit(ctx, models.AuditActionDeactivateTerm, term, actorID)
	s.logger.Info("term deactivated", zap.String("term_id", id))
	return term, nil
}

func (s *TermService) cacheEnabled() bool {
	return s.cfg.Enabled && s.cache != nil
}

func (s *TermService) invalidate(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Delete(ctx, activeTermCacheKey); err != nil {
		s.logger.Warn("failed to invalidate term cache", zap.Error(err))
	}
}

func (s *TermService) audit(ctx context.Context, action string, term *models.Term, actorID *string) {
	payload, _ := json.Marshal(term)
	if err := s.audits.Create(ctx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    action,
		Entity:    "terms",
		EntityID:  term.ID,
		NewValues: payload,
	}); err != nil {
		s.logger.Error("failed to audit term change", zap.Error(err))
	}
}
