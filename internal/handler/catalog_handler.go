package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/internal/service"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
	"github.com/property360-2/richwell-portal-api/pkg/response"
)

// CatalogHandler exposes the subject catalog and curriculum plans.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListSubjects godoc
// @Summary List subjects
// @Tags Catalog
// @Produce json
// @Param programId query string false "Filter by program"
// @Param type query string false "Filter by subject type"
// @Param search query string false "Search code or title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	var filter models.SubjectFilter
	filter.ProgramID = c.Query("programId")
	filter.Type = models.SubjectType(c.Query("type"))
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	subjects, pagination, err := h.catalog.ListSubjects(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// GetSubject godoc
// @Summary Get a subject with its prerequisites
// @Tags Catalog
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *CatalogHandler) GetSubject(c *gin.Context) {
	subject, prerequisites, err := h.catalog.GetSubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"subject":       subject,
		"prerequisites": prerequisites,
	}, nil)
}

// GetProgram godoc
// @Summary Get a program with its active curriculum
// @Tags Catalog
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id} [get]
func (h *CatalogHandler) GetProgram(c *gin.Context) {
	program, curriculum, err := h.catalog.GetProgram(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"program":    program,
		"curriculum": curriculum,
	}, nil)
}

// CurriculumPlan godoc
// @Summary Get the recommended subjects for a program, year level, and term
// @Tags Catalog
// @Produce json
// @Param programId query string true "Program ID"
// @Param year query int true "Year level"
// @Param term query int true "Term number"
// @Success 200 {object} response.Envelope
// @Router /curriculum/plan [get]
func (h *CatalogHandler) CurriculumPlan(c *gin.Context) {
	programID := c.Query("programId")
	year, yearErr := strconv.Atoi(c.Query("year"))
	termNo, termErr := strconv.Atoi(c.Query("term"))
	if programID == "" || yearErr != nil || termErr != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "programId, year, and term are required"))
		return
	}

	plan, err := h.catalog.GetCurriculumPlan(c.Request.Context(), programID, year, termNo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// AddPrerequisite godoc
// @Summary Add a prerequisite edge between two subjects
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.AddPrerequisiteRequest true "Prerequisite payload"
// @Success 201 {object} response.Envelope
// @Router /prerequisites [post]
func (h *CatalogHandler) AddPrerequisite(c *gin.Context) {
	var req service.AddPrerequisiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	prerequisite, err := h.catalog.AddPrerequisite(c.Request.Context(), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, prerequisite)
}
