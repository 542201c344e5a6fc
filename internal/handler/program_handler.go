package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/internal/service"
	"github.com/noah-isme/health-registry-api/pkg/response"
)

type programService interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, req service.ProgramRequest) (*models.Program, error)
	Update(ctx context.Context, id string, req service.ProgramRequest) (*models.Program, error)
	Patch(ctx context.Context, id string, req service.ProgramPatchRequest) (*models.Program, error)
	Delete(ctx context.Context, id string) error
}

// ProgramHandler exposes program endpoints.
type ProgramHandler struct {
	programs programService
}

// NewProgramHandler constructs ProgramHandler.
func NewProgramHandler(programs programService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// List godoc
// @Summary List programs
// @Tags Programs
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /programs/ [get]
func (h *ProgramHandler) List(c *gin.Context) {
	filter := models.ProgramFilter{Search: searchParam(c)}
	filter.Page, filter.PageSize = pageParams(c)

	programs, pagination, err := h.programs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, pagination)
}

// Get godoc
// @Summary Get program
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /programs/{id}/ [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Create godoc
// @Summary Create program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.ProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /programs/ [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.ProgramRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.programs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Update godoc
// @Summary Replace program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.ProgramRequest true "Program payload"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/ [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	var req service.ProgramRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.programs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Patch godoc
// @Summary Partially update program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.ProgramPatchRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/ [patch]
func (h *ProgramHandler) Patch(c *gin.Context) {
	var req service.ProgramPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.programs.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Delete godoc
// @Summary Delete program and its enrollments
// @Tags Programs
// @Param id path string true "Program ID"
// @Success 204
// @Router /programs/{id}/ [delete]
func (h *ProgramHandler) Delete(c *gin.Context) {
	if err := h.programs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
