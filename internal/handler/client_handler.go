package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/internal/service"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
	"github.com/noah-isme/health-registry-api/pkg/response"
)

type clientService interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.ClientProfile, *models.Pagination, error)
	Profile(ctx context.Context, id string) (*models.ClientProfile, error)
	Create(ctx context.Context, req service.ClientRequest) (*models.ClientProfile, error)
	Update(ctx context.Context, id string, req service.ClientRequest) (*models.ClientProfile, error)
	Patch(ctx context.Context, id string, req service.ClientPatchRequest) (*models.ClientProfile, error)
	Delete(ctx context.Context, id string) error
	ExportRoster(ctx context.Context, search, format string) (*service.RosterExport, error)
}

type enroller interface {
	RequireClient(ctx context.Context, clientID string) (*models.Client, error)
	Enroll(ctx context.Context, clientID string, req service.EnrollRequest) (*models.EnrollResult, error)
}

// ClientHandler exposes client endpoints including the enroll action.
type ClientHandler struct {
	clients  clientService
	enroller enroller
}

// NewClientHandler constructs ClientHandler.
func NewClientHandler(clients clientService, enroller enroller) *ClientHandler {
	return &ClientHandler{clients: clients, enroller: enroller}
}

// List godoc
// @Summary List clients
// @Description Each client carries full_name, age and nested enrollments.
// @Tags Clients
// @Produce json
// @Param search query string false "Substring of first name, last name, phone number or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clients/ [get]
func (h *ClientHandler) List(c *gin.Context) {
	filter := models.ClientFilter{Search: searchParam(c)}
	filter.Page, filter.PageSize = pageParams(c)

	clients, pagination, err := h.clients.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clients, pagination)
}

// Export godoc
// @Summary Export client roster
// @Tags Clients
// @Produce text/csv
// @Produce application/pdf
// @Param search query string false "Substring of first name, last name, phone number or email"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /clients/export/ [get]
func (h *ClientHandler) Export(c *gin.Context) {
	roster, err := h.clients.ExportRoster(c.Request.Context(), searchParam(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", roster.Filename))
	c.Data(http.StatusOK, roster.Format.ContentType(), roster.Content)
}

// Get godoc
// @Summary Get client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clients/{id}/ [get]
func (h *ClientHandler) Get(c *gin.Context) {
	h.Profile(c)
}

// Profile godoc
// @Summary Get client profile
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clients/{id}/profile/ [get]
func (h *ClientHandler) Profile(c *gin.Context) {
	profile, err := h.clients.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Create godoc
// @Summary Register client
// @Tags Clients
// @Accept json
// @Produce json
// @Param payload body service.ClientRequest true "Client payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /clients/ [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req service.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.clients.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, profile)
}

// Update godoc
// @Summary Replace client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param payload body service.ClientRequest true "Client payload"
// @Success 200 {object} response.Envelope
// @Router /clients/{id}/ [put]
func (h *ClientHandler) Update(c *gin.Context) {
	var req service.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.clients.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Patch godoc
// @Summary Partially update client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param payload body service.ClientPatchRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /clients/{id}/ [patch]
func (h *ClientHandler) Patch(c *gin.Context) {
	var req service.ClientPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.clients.Patch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Delete godoc
// @Summary Delete client and its enrollments
// @Tags Clients
// @Param id path string true "Client ID"
// @Success 204
// @Router /clients/{id}/ [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Enroll godoc
// @Summary Enroll client in a program
// @Description Creates, reactivates or confirms the enrollment. Always 200 on success.
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param payload body service.EnrollRequest true "Program to enroll in"
// @Success 200 {object} response.ActionResult
// @Failure 400 {object} response.ActionResult
// @Failure 404 {object} response.ActionResult
// @Router /clients/{id}/enroll/ [post]
func (h *ClientHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		if _, lookupErr := h.enroller.RequireClient(c.Request.Context(), c.Param("id")); lookupErr != nil {
			response.ActionError(c, lookupErr)
			return
		}
		response.ActionError(c, appErrors.Validation("invalid payload", service.FieldErrors(err)...))
		return
	}
	result, err := h.enroller.Enroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.ActionError(c, err)
		return
	}
	response.Message(c, http.StatusOK, result.Message)
}
