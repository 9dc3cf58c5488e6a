package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hrd-training-api/internal/service"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
	"github.com/noah-isme/hrd-training-api/pkg/response"
)

// PresenceHandler exposes attendance endpoints.
type PresenceHandler struct {
	presence *service.PresenceService
}

// NewPresenceHandler constructs PresenceHandler.
func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Submit godoc
// @Summary Submit a presence batch for a module
// @Tags Presence
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body service.SubmitPresenceRequest true "Presence batch"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/presence [post]
func (h *PresenceHandler) Submit(c *gin.Context) {
	var req service.SubmitPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	records, err := h.presence.SubmitPresence(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Summary godoc
// @Summary Get the attendance summary for a user module
// @Tags Presence
// @Produce json
// @Param id path string true "User module ID"
// @Success 200 {object} response.Envelope
// @Router /user-modules/{id}/presence/summary [get]
func (h *PresenceHandler) Summary(c *gin.Context) {
	summary, err := h.presence.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// History godoc
// @Summary List stored presence rows for a user module
// @Tags Presence
// @Produce json
// @Param id path string true "User module ID"
// @Success 200 {object} response.Envelope
// @Router /user-modules/{id}/presence [get]
func (h *PresenceHandler) History(c *gin.Context) {
	records, err := h.presence.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}
