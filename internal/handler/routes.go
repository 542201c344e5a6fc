package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers groups the registry handlers mounted by RegisterRoutes.
type Handlers struct {
	Programs    *ProgramHandler
	Clients     *ClientHandler
	Enrollments *EnrollmentHandler
}

// RegisterRoutes mounts the registry API under group. Every path answers both
// with and without a trailing slash, so the engine must not redirect between them.
func RegisterRoutes(group *gin.RouterGroup, h Handlers) {
	if h.Programs != nil {
		programs := group.Group("/programs")
		handle(programs, http.MethodGet, "", h.Programs.List)
		handle(programs, http.MethodPost, "", h.Programs.Create)
		handle(programs, http.MethodGet, "/:id", h.Programs.Get)
		handle(programs, http.MethodPut, "/:id", h.Programs.Update)
		handle(programs, http.MethodPatch, "/:id", h.Programs.Patch)
		handle(programs, http.MethodDelete, "/:id", h.Programs.Delete)
	}

	if h.Clients != nil {
		clients := group.Group("/clients")
		handle(clients, http.MethodGet, "", h.Clients.List)
		handle(clients, http.MethodPost, "", h.Clients.Create)
		handle(clients, http.MethodGet, "/export", h.Clients.Export)
		handle(clients, http.MethodGet, "/:id", h.Clients.Get)
		handle(clients, http.MethodPut, "/:id", h.Clients.Update)
		handle(clients, http.MethodPatch, "/:id", h.Clients.Patch)
		handle(clients, http.MethodDelete, "/:id", h.Clients.Delete)
		handle(clients, http.MethodGet, "/:id/profile", h.Clients.Profile)
		handle(clients, http.MethodPost, "/:id/enroll", h.Clients.Enroll)
	}

	if h.Enrollments != nil {
		enrollments := group.Group("/enrollments")
		handle(enrollments, http.MethodGet, "", h.Enrollments.List)
		handle(enrollments, http.MethodPost, "", h.Enrollments.Create)
		handle(enrollments, http.MethodGet, "/:id", h.Enrollments.Get)
		handle(enrollments, http.MethodPut, "/:id", h.Enrollments.Update)
		handle(enrollments, http.MethodPatch, "/:id", h.Enrollments.Patch)
		handle(enrollments, http.MethodDelete, "/:id", h.Enrollments.Delete)
	}
}

func handle(group *gin.RouterGroup, method, path string, fn gin.HandlerFunc) {
	group.Handle(method, path, fn)
	group.Handle(method, path+"/", fn)
}
