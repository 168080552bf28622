package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	})
	router.GET("/students/:id", RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	router := rbacRouter(&models.JWTClaims{UserID: "u-1", Role: models.RoleRegistrar}, string(models.RoleRegistrar))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/s-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRBACForbidsOtherRoles(t *testing.T) {
	router := rbacRouter(&models.JWTClaims{UserID: "u-1", Role: models.RoleStudent}, string(models.RoleRegistrar))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/s-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesPathParam(t *testing.T) {
	router := rbacRouter(&models.JWTClaims{UserID: "s-1", Role: models.RoleStudent}, "SELF", string(models.RoleRegistrar))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/s-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRBACSelfRejectsOtherStudent(t *testing.T) {
	router := rbacRouter(&models.JWTClaims{UserID: "s-2", Role: models.RoleStudent}, "SELF", string(models.RoleRegistrar))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/s-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	router := rbacRouter(nil, string(models.RoleRegistrar))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/students/s-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
