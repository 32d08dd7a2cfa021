package notification

import (
	"log/slog"
	"net/http"

	"pushdesk/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/v1/notifications
// Composes a new notification, optionally scheduled via sendAt.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		slog.Error("create notification failed", "error", err, "title", req.Title)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, n)
}

// List handles GET /api/v1/notifications
func (h *Handler) List(c *gin.Context) {
	notifications, err := h.service.List(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"notifications": notifications, "total": len(notifications)})
}

// ListScheduled handles GET /api/v1/notifications/scheduled
func (h *Handler) ListScheduled(c *gin.Context) {
	notifications, err := h.service.ListScheduled(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"notifications": notifications, "total": len(notifications)})
}

// Get handles GET /api/v1/notifications/:id
func (h *Handler) Get(c *gin.Context) {
	n, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, n)
}

// Save handles PATCH /api/v1/notifications/:id
// Reconciles an edit session and writes only the changed fields.
func (h *Handler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cs, err := h.service.Save(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"updated": !cs.Empty()})
}

// Send handles POST /api/v1/notifications/:id/send
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id := c.Param("id")
	n, err := h.service.Send(c.Request.Context(), id, &req)
	if err != nil {
		slog.Error("send notification failed", "error", err, "id", id)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, n)
}

// Reschedule handles POST /api/v1/notifications/:id/reschedule
func (h *Handler) Reschedule(c *gin.Context) {
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.service.Reschedule(c.Request.Context(), c.Param("id"), &req); err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"status": "rescheduled"})
}

// Cancel handles POST /api/v1/notifications/:id/cancel
// Idempotent: cancelling an already-cancelled notification succeeds.
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"status": "cancelled"})
}

// Delete handles DELETE /api/v1/notifications/:id
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"status": "deleted"})
}

// TestSend handles POST /api/v1/test-send
// Pushes a preview to a single device token.
func (h *Handler) TestSend(c *gin.Context) {
	var req TestSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.service.TestSend(c.Request.Context(), &req); err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"status": "sent"})
}

// RegisterRoutes registers notification routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notifications", h.Create)
	rg.GET("/notifications", h.List)
	rg.GET("/notifications/scheduled", h.ListScheduled)
	rg.GET("/notifications/:id", h.Get)
	rg.PATCH("/notifications/:id", h.Save)
	rg.POST("/notifications/:id/send", h.Send)
	rg.POST("/notifications/:id/reschedule", h.Reschedule)
	rg.POST("/notifications/:id/cancel", h.Cancel)
	rg.DELETE("/notifications/:id", h.Delete)
	rg.POST("/test-send", h.TestSend)
}
