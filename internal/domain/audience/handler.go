package audience

import (
	"net/http"

	"pushdesk/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the audience domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new audience handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListDevices handles GET /api/v1/devices
func (h *Handler) ListDevices(c *gin.Context) {
	users, err := h.service.ListDevices(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"devices": users, "total": len(users)})
}

// ListGroups handles GET /api/v1/groups
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"groups": groups, "total": len(groups)})
}

// ListSegments handles GET /api/v1/segments
func (h *Handler) ListSegments(c *gin.Context) {
	segments, err := h.service.ListSegments(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"segments": segments, "total": len(segments)})
}

// SegmentMembers handles GET /api/v1/segments/:id/members
func (h *Handler) SegmentMembers(c *gin.Context) {
	id := c.Param("id")

	members, err := h.service.SegmentMembers(c.Request.Context(), id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"members": members, "total": len(members)})
}

// SyncSegments handles POST /api/v1/segments/sync
// Triggers an upstream recomputation and returns immediately.
func (h *Handler) SyncSegments(c *gin.Context) {
	if err := h.service.SyncSegments(c.Request.Context()); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusAccepted, gin.H{"status": "sync started"})
}

// RegisterRoutes registers audience routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/devices", h.ListDevices)
	rg.GET("/groups", h.ListGroups)
	rg.GET("/segments", h.ListSegments)
	rg.GET("/segments/:id/members", h.SegmentMembers)
	rg.POST("/segments/sync", h.SyncSegments)
}
