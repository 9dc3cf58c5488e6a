package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hrd-training-api/internal/service"
	"github.com/noah-isme/hrd-training-api/pkg/response"
)

// SyncHandler exposes the manual roster sync endpoints.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler constructs SyncHandler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Sync godoc
// @Summary Rebuild registrations from a module's roster
// @Tags Sync
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	if err := h.sync.SyncModule(c.Request.Context(), c.Param("id"), false); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "synced"})
}

// Reconcile godoc
// @Summary Repair registrations without touching decided statuses
// @Tags Sync
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/reconcile [post]
func (h *SyncHandler) Reconcile(c *gin.Context) {
	if err := h.sync.SyncModule(c.Request.Context(), c.Param("id"), true); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "reconciled"})
}
