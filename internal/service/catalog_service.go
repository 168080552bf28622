package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type catalogRepository interface {
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	GetSubject(ctx context.Context, id string) (*models.Subject, error)
	ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	GetActiveCurriculum(ctx context.Context, programID string) (*models.Curriculum, error)
	GetPrerequisites(ctx context.Context, subjectID string) ([]models.Prerequisite, error)
	ListPrerequisiteEdges(ctx context.Context) ([]models.Prerequisite, error)
	CreatePrerequisite(ctx context.Context, prereq *models.Prerequisite) error
	GetCurriculumSubjects(ctx context.Context, curriculumID string, year, termNo int) ([]models.CurriculumSubject, error)
}

// AddPrerequisiteRequest describes a new prerequisite edge.
type AddPrerequisiteRequest struct {
	SubjectID       string `json:"subject_id" validate:"required"`
	PrereqSubjectID string `json:"prereq_subject_id" validate:"required,nefield=SubjectID"`
}

// CatalogService serves program, subject and curriculum reads and owns
// prerequisite authoring. The prerequisite graph is validated to stay
// acyclic at write time, so every read path can treat it as a DAG.
type CatalogService struct {
	repo      catalogRepository
	cache     termCache
	audits    auditRecorder
	cacheCfg  config.CacheConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService. cache may be nil.
func NewCatalogService(repo catalogRepository, cache termCache, audits auditRecorder, cacheCfg config.CacheConfig, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, audits: audits, cacheCfg: cacheCfg, validator: validate, logger: logger}
}

// GetSubject returns one subject with its prerequisites.
func (s *CatalogService) GetSubject(ctx context.Context, id string) (*models.Subject, []models.Prerequisite, error) {
	subject, err := s.repo.GetSubject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	prereqs, err := s.repo.GetPrerequisites(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	return subject, prereqs, nil
}

// ListSubjects returns subjects with pagination metadata.
func (s *CatalogService) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.ListSubjects(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetProgram returns one program together with its active curriculum.
// The curriculum is nil when no version is currently active.
func (s *CatalogService) GetProgram(ctx context.Context, id string) (*models.Program, *models.Curriculum, error) {
	program, err := s.repo.GetProgram(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	curriculum, err := s.repo.GetActiveCurriculum(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return program, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	return program, curriculum, nil
}

// GetCurriculumPlan returns the recommended subjects for a program's
// active curriculum at (year, termNo), cached per slot.
func (s *CatalogService) GetCurriculumPlan(ctx context.Context, programID string, year, termNo int) ([]models.CurriculumSubject, error) {
	curriculum, err := s.repo.GetActiveCurriculum(ctx, programID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program has no active curriculum")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}

	key := fmt.Sprintf("curriculum:%s:plan:%d:%d", curriculum.ID, year, termNo)
	if s.cacheEnabled() {
		var cached []models.CurriculumSubject
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	subjects, err := s.repo.GetCurriculumSubjects(ctx, curriculum.ID, year, termNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum plan")
	}
	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, subjects, s.cacheCfg.TTL); err != nil {
			s.logger.Warn("failed to cache curriculum plan", zap.Error(err))
		}
	}
	return subjects, nil
}

// AddPrerequisite creates a prerequisite edge after verifying both
// subjects exist and the new edge keeps the graph acyclic.
func (s *CatalogService) AddPrerequisite(ctx context.Context, req AddPrerequisiteRequest, actorID *string) (*models.Prerequisite, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prerequisite payload")
	}

	if _, err := s.repo.GetSubject(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	prereqSubject, err := s.repo.GetSubject(ctx, req.PrereqSubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite subject")
	}

	edges, err := s.repo.ListPrerequisiteEdges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite graph")
	}
	for _, edge := range edges {
		if edge.SubjectID == req.SubjectID && edge.PrereqSubjectID == req.PrereqSubjectID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "prerequisite already exists")
		}
	}
	if createsCycle(edges, req.SubjectID, req.PrereqSubjectID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "prerequisite would create a cycle")
	}

	prereq := &models.Prerequisite{
		SubjectID:       req.SubjectID,
		PrereqSubjectID: req.PrereqSubjectID,
		PrereqCode:      prereqSubject.Code,
	}
	if err := s.repo.CreatePrerequisite(ctx, prereq); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create prerequisite")
	}

	payload, _ := json.Marshal(prereq)
	if err := s.audits.Create(ctx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionAddPrerequisite,
		Entity:    "prerequisites",
		EntityID:  prereq.ID,
		NewValues: payload,
	}); err != nil {
		s.logger.Error("failed to audit prerequisite", zap.Error(err))
	}

	s.invalidatePlans(ctx)
	return prereq, nil
}

func (s *CatalogService) cacheEnabled() bool {
	return s.cacheCfg.Enabled && s.cache != nil
}

func (s *CatalogService) invalidatePlans(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	type patternDeleter interface {
		DeleteByPattern(ctx context.Context, pattern string) error
	}
	if deleter, ok := s.cache.(patternDeleter); ok {
		if err := deleter.DeleteByPattern(ctx, "curriculum:*"); err != nil {
			s.logger.Warn("failed to invalidate curriculum cache", zap.Error(err))
		}
	}
}

// createsCycle reports whether adding subject -> prereq would close a
// cycle, i.e. whether subject is already reachable from prereq by walking
// prerequisite edges.
func createsCycle(edges []models.Prerequisite, subjectID, prereqSubjectID string) bool {
	adjacency := make(map[string][]string, len(edges))
	for _, edge := range edges {
		adjacency[edge.SubjectID] = append(adjacency[edge.SubjectID], edge.PrereqSubjectID)
	}

	seen := map[string]bool{}
	stack := []string{prereqSubjectID}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == subjectID {
			return true
		}
		if seen[node] {
			continue
		}
		seen[node] = true
		stack = append(stack, adjacency[node]...)
	}
	return false
}
