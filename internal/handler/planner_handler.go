package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/property360-2/richwell-portal-api/internal/service"
	"github.com/property360-2/richwell-portal-api/pkg/response"
)

// PlannerHandler exposes the auto-enrollment planner.
type PlannerHandler struct {
	planner *service.PlannerService
	metrics *service.MetricsService
}

// NewPlannerHandler constructs PlannerHandler.
func NewPlannerHandler(planner *service.PlannerService, metrics *service.MetricsService) *PlannerHandler {
	return &PlannerHandler{planner: planner, metrics: metrics}
}

// Plan godoc
// @Summary Preview the auto-enrollment plan for a student
// @Tags Planner
// @Produce json
// @Param id path string true "Student ID"
// @Param unitCap query number false "Unit budget override"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/enrollment-plan [get]
func (h *PlannerHandler) Plan(c *gin.Context) {
	plan, err := h.planner.Plan(c.Request.Context(), c.Param("id"), unitCapFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Enact godoc
// @Summary Execute auto-enrollment for a student
// @Tags Planner
// @Produce json
// @Param id path string true "Student ID"
// @Param unitCap query number false "Unit budget override"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/auto-enroll [post]
func (h *PlannerHandler) Enact(c *gin.Context) {
	plan, err := h.planner.Enact(c.Request.Context(), c.Param("id"), unitCapFromQuery(c), actorIDFromContext(c))
	if err != nil {
		h.metrics.RecordAutoEnrollRun("failed")
		response.Error(c, err)
		return
	}
	h.metrics.RecordAutoEnrollRun("enacted")
	response.Created(c, plan)
}

// unitCapFromQuery reads an optional unit budget override; zero lets the
// planner fall back to the configured cap.
func unitCapFromQuery(c *gin.Context) float64 {
	raw := c.Query("unitCap")
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
