package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-llm/internal/llm"
)

// Pinger verifica la disponibilidad del store.
type Pinger func(ctx context.Context) error

// MetaHandler expone el catalogo de modelos y el health check.
type MetaHandler struct {
	logger   *zap.Logger
	registry *llm.Registry
	ping     Pinger
}

func NewMetaHandler(logger *zap.Logger, registry *llm.Registry, ping Pinger) *MetaHandler {
	return &MetaHandler{logger: logger, registry: registry, ping: ping}
}

type modelView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Group     string `json:"group"`
	Reasoning bool   `json:"reasoning"`
}

type groupView struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Models      []string `json:"models"`
}

// Models maneja GET /api/models.
func (h *MetaHandler) Models(c *gin.Context) {
	models := h.registry.Models()
	views := make([]modelView, 0, len(models))
	byGroup := make(map[string][]string)
	reasoning := make([]string, 0)
	for _, m := range models {
		views = append(views, modelView{ID: m.ID, Name: m.Name, Group: m.Group, Reasoning: m.Reasoning})
		byGroup[m.Group] = append(byGroup[m.Group], m.ID)
		if m.Reasoning {
			reasoning = append(reasoning, m.ID)
		}
	}
	groups := make([]groupView, 0)
	for _, g := range h.registry.Groups() {
		ids := byGroup[g.Name]
		if ids == nil {
			ids = []string{}
		}
		groups = append(groups, groupView{Name: g.Name, Description: g.Description, Models: ids})
	}

	c.JSON(http.StatusOK, gin.H{
		"default":   h.registry.DefaultID(),
		"models":    views,
		"groups":    groups,
		"reasoning": reasoning,
	})
}

// Health maneja GET /healthz.
func (h *MetaHandler) Health(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
