package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/registry"
)

// PresenceHandler exposes the presence registry to the chat relay
type PresenceHandler struct {
	registry registry.Registry
	logger   *logrus.Logger
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(r registry.Registry, logger *logrus.Logger) *PresenceHandler {
	return &PresenceHandler{registry: r, logger: logger}
}

// RegisterRequest is the body of PUT /presence/:userId
type RegisterRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
}

// Register handles PUT /api/v1/presence/:userId
func (h *PresenceHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.registry.Register(c.Request.Context(), c.Param("userId"), req.ConnectionID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Online"})
}

// Unregister handles DELETE /api/v1/presence/:userId
func (h *PresenceHandler) Unregister(c *gin.Context) {
	if err := h.registry.Unregister(c.Request.Context(), c.Param("userId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Offline"})
}

// Lookup handles GET /api/v1/presence/:userId
func (h *PresenceHandler) Lookup(c *gin.Context) {
	connID, online, err := h.registry.Lookup(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Presence",
		Data:    gin.H{"online": online, "connectionId": connID},
	})
}
