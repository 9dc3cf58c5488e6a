package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hrd-training-api/internal/service"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
	"github.com/noah-isme/hrd-training-api/pkg/response"
)

// ModuleHandler exposes module schedule and assignment endpoints.
type ModuleHandler struct {
	modules     *service.ModuleService
	assignments *service.AssignmentService
}

// NewModuleHandler constructs ModuleHandler.
func NewModuleHandler(modules *service.ModuleService, assignments *service.AssignmentService) *ModuleHandler {
	return &ModuleHandler{modules: modules, assignments: assignments}
}

// Get godoc
// @Summary Get module
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id} [get]
func (h *ModuleHandler) Get(c *gin.Context) {
	module, err := h.modules.GetModule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, module)
}

// Schedule godoc
// @Summary Get computed module schedule
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/schedule [get]
func (h *ModuleHandler) Schedule(c *gin.Context) {
	schedule, err := h.modules.Schedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schedule)
}

// Conflicts godoc
// @Summary Check two modules for schedule conflicts
// @Tags Modules
// @Produce json
// @Param id path string true "Module ID"
// @Param otherId path string true "Other module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/conflicts/{otherId} [get]
func (h *ModuleHandler) Conflicts(c *gin.Context) {
	report, err := h.modules.Conflicts(c.Request.Context(), c.Param("id"), c.Param("otherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Assign godoc
// @Summary Assign users to a module roster
// @Tags Modules
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body service.AssignUsersRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/assignments [post]
func (h *ModuleHandler) Assign(c *gin.Context) {
	var req service.AssignUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.assignments.AssignUsers(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
