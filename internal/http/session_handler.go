package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-llm/internal/service"
)

// SessionHandler expone el CRUD de sesiones del owner autenticado.
type SessionHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
}

func NewSessionHandler(logger *zap.Logger, sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{logger: logger, sessions: sessions}
}

// List maneja GET /api/sessions.
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessions.List(c.Request.Context(), ownerID(c))
	if err != nil {
		h.fail(c, "list sessions failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Create maneja POST /api/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid create session request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	session, err := h.sessions.Create(c.Request.Context(), ownerID(c), req.Title)
	if err != nil {
		h.fail(c, "create session failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// Get maneja GET /api/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.fail(c, "get session failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Delete maneja DELETE /api/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		h.fail(c, "delete session failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process session"})
	}
}
