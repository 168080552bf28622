package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type termMockRepo struct {
	terms       map[string]models.Term
	activated   []string
	deactivated []string
}

func (m *termMockRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		return &term, nil
	}
	return nil, sql.ErrNoRows
}

func (m *termMockRepo) FindActive(ctx context.Context) (*models.Term, error) {
	for _, term := range m.terms {
		if term.IsActive {
			t := term
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *termMockRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	return nil, 0, nil
}

func (m *termMockRepo) SetActive(ctx context.Context, id string) error {
	for key, term := range m.terms {
		term.IsActive = key == id
		m.terms[key] = term
	}
	m.activated = append(m.activated, id)
	return nil
}

func (m *termMockRepo) Deactivate(ctx context.Context, id string) error {
	term := m.terms[id]
	term.IsActive = false
	m.terms[id] = term
	m.deactivated = append(m.deactivated, id)
	return nil
}

type termMockCache struct {
	store   map[string][]byte
	deleted []string
}

func (m *termMockCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *termMockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = nil
	return nil
}

func (m *termMockCache) Delete(ctx context.Context, keys ...string) error {
	m.deleted = append(m.deleted, keys...)
	return nil
}

func termFixture(repo *termMockRepo) (*TermService, *termMockCache, *planMockAudits) {
	cache := &termMockCache{}
	audits := &planMockAudits{}
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute}
	return NewTermService(repo, cache, audits, cfg, nil), cache, audits
}

func TestTermActivateSwitchesActiveTerm(t *testing.T) {
	repo := &termMockRepo{terms: map[string]models.Term{
		"term-1": {ID: "term-1", IsActive: true},
		"term-2": {ID: "term-2", IsActive: false},
	}}
	svc, cache, audits := termFixture(repo)

	term, err := svc.Activate(context.Background(), "term-2", nil)
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.Equal(t, []string{"term-2"}, repo.activated)
	assert.False(t, repo.terms["term-1"].IsActive)
	assert.Contains(t, cache.deleted, activeTermCacheKey)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionActivateTerm, audits.entries[0].Action)
}

func TestTermActivateUnknownTerm(t *testing.T) {
	repo := &termMockRepo{terms: map[string]models.Term{}}
	svc, _, _ := termFixture(repo)

	_, err := svc.Activate(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTermDeactivate(t *testing.T) {
	repo := &termMockRepo{terms: map[string]models.Term{
		"term-1": {ID: "term-1", IsActive: true},
	}}
	svc, cache, audits := termFixture(repo)

	term, err := svc.Deactivate(context.Background(), "term-1", nil)
	require.NoError(t, err)
	assert.False(t, term.IsActive)
	assert.Equal(t, []string{"term-1"}, repo.deactivated)
	assert.Contains(t, cache.deleted, activeTermCacheKey)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionDeactivateTerm, audits.entries[0].Action)
}

func TestTermDeactivateRequiresActive(t *testing.T) {
	repo := &termMockRepo{terms: map[string]models.Term{
		"term-1": {ID: "term-1", IsActive: false},
	}}
	svc, _, _ := termFixture(repo)

	_, err := svc.Deactivate(context.Background(), "term-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	assert.Empty(t, repo.deactivated)
}

func TestTermGetActiveCachesResult(t *testing.T) {
	repo := &termMockRepo{terms: map[string]models.Term{
		"term-1": {ID: "term-1", IsActive: true},
	}}
	svc, cache, _ := termFixture(repo)

	term, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "term-1", term.ID)
	assert.Contains(t, cache.store, activeTermCacheKey)
}

func TestTermGetActiveNoActiveTerm(t *testing.T) {
	repo := &termMockRepo{terms: map[string]models.Term{
		"term-1": {ID: "term-1", IsActive: false},
	}}
	svc, _, _ := termFixture(repo)

	_, err := svc.GetActive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
