package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/internal/service"
	"github.com/property360-2/richwell-portal-api/pkg/response"
)

// ArchiveHandler exposes term closure, graduation, and the archive index.
type ArchiveHandler struct {
	archives *service.ArchiveService
	metrics  *service.MetricsService
}

// NewArchiveHandler constructs ArchiveHandler.
func NewArchiveHandler(archives *service.ArchiveService, metrics *service.MetricsService) *ArchiveHandler {
	return &ArchiveHandler{archives: archives, metrics: metrics}
}

// List godoc
// @Summary List archive entries
// @Tags Archives
// @Produce json
// @Param entity query string false "Filter by entity"
// @Param entityId query string false "Filter by entity ID"
// @Param reason query string false "Filter by reason"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	var filter models.ArchiveFilter
	filter.Entity = c.Query("entity")
	filter.EntityID = c.Query("entityId")
	filter.Reason = c.Query("reason")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	archives, pagination, err := h.archives.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archives, pagination)
}

// Get godoc
// @Summary Get an archive entry
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Router /archives/{id} [get]
func (h *ArchiveHandler) Get(c *gin.Context) {
	archive, err := h.archives.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archive, nil)
}

// CloseTerm godoc
// @Summary Archive all enrollment records for a finished term
// @Tags Archives
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/close [post]
func (h *ArchiveHandler) CloseTerm(c *gin.Context) {
	report, err := h.archives.CloseTerm(c.Request.Context(), c.Param("id"), actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordArchiveRun("term_closure")
	response.JSON(c, http.StatusOK, report, nil)
}

// Graduate godoc
// @Summary Graduate a student and archive the full academic record
// @Tags Archives
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/graduate [post]
func (h *ArchiveHandler) Graduate(c *gin.Context) {
	snapshot, err := h.archives.GraduateStudent(c.Request.Context(), c.Param("id"), actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordArchiveRun("graduation")
	response.JSON(c, http.StatusOK, snapshot, nil)
}
