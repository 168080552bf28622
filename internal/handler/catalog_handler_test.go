package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/property360-2/richwell-portal-api/internal/service"
	"github.com/property360-2/richwell-portal-api/pkg/config"
)

func catalogTestHandler() *CatalogHandler {
	svc := service.NewCatalogService(nil, nil, nil, config.CacheConfig{}, nil, nil)
	return NewCatalogHandler(svc)
}

func TestCurriculumPlanRequiresQueryParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := catalogTestHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/curriculum/plan?programId=p-1&year=2", nil)

	h.CurriculumPlan(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCurriculumPlanRejectsNonNumericYear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := catalogTestHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/curriculum/plan?programId=p-1&year=two&term=1", nil)

	h.CurriculumPlan(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
