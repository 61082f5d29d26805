package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-llm/internal/domain"
	"chat-llm/internal/service"
)

// ChatHandler expone el turno de chat como stream SSE.
type ChatHandler struct {
	logger *zap.Logger
	chat   *service.ChatService
}

func NewChatHandler(logger *zap.Logger, chat *service.ChatService) *ChatHandler {
	return &ChatHandler{logger: logger, chat: chat}
}

type chatRequest struct {
	Message            domain.ChatMessage `json:"message"`
	SelectedModelID    string             `json:"selectedModelId"`
	SessionID          string             `json:"sessionId"`
	IsReasoningEnabled bool               `json:"isReasoningEnabled"`
	IsSearchEnabled    bool               `json:"isSearchEnabled"`
}

// Chat maneja POST /api/chat. Los errores previos al stream se responden
// como JSON; una vez abierto el stream los errores llegan como evento.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Message.Role == "" {
		req.Message.Role = domain.RoleUser
	}

	ctx := c.Request.Context()
	events, err := h.chat.Start(ctx, service.TurnInput{
		OwnerID:          ownerID(c),
		SessionID:        req.SessionID,
		Message:          req.Message,
		ModelID:          req.SelectedModelID,
		SearchEnabled:    req.IsSearchEnabled,
		ReasoningEnabled: req.IsReasoningEnabled,
	})
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("chat start failed", zap.Error(err), zap.String("session_id", req.SessionID))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(ev.Type), ev.Payload())
			c.Writer.Flush()
		}
	}
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, service.ErrUnknownModel):
		return http.StatusBadRequest, "unknown model"
	case errors.Is(err, service.ErrInvalidChatRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	default:
		return http.StatusInternalServerError, service.MaskedErrorMessage
	}
}
