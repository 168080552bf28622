package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/property360-2/richwell-portal-api/internal/service"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
	"github.com/property360-2/richwell-portal-api/pkg/response"
)

// GradeHandler exposes grade posting and the INC expiration sweep.
type GradeHandler struct {
	grades  *service.GradeService
	metrics *service.MetricsService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService, metrics *service.MetricsService) *GradeHandler {
	return &GradeHandler{grades: grades, metrics: metrics}
}

// Apply godoc
// @Summary Post a grade for an enrollment
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.ApplyGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Apply(c *gin.Context) {
	var req service.ApplyGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.grades.ApplyGrade(c.Request.Context(), req, claims.UserID, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGradeTransition(string(detail.Status))
	response.JSON(c, http.StatusOK, detail, nil)
}

// Sweep godoc
// @Summary Expire overdue incomplete grades
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/sweep [post]
func (h *GradeHandler) Sweep(c *gin.Context) {
	report, err := h.grades.ExpireIncompletes(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordIncExpirations(report.Expired)
	response.JSON(c, http.StatusOK, report, nil)
}
