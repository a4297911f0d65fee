package server

import (
	"errors"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/webhook"
)

func (s *Server) listWebhooks(c *gin.Context) {
	user := currentUser(c)

	webhooks, err := s.webhooks.List(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("Failed to list webhooks", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to list webhooks"})
		return
	}

	out := make([]gin.H, 0, len(webhooks))
	for _, w := range webhooks {
		out = append(out, webhookResponse(&w))
	}
	c.JSON(200, out)
}

func (s *Server) createWebhook(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		Name   string `json:"name" binding:"required,max=100"`
		URL    string `json:"url" binding:"required,max=500"`
		Secret string `json:"secret" binding:"max=64"`
		Events int    `json:"events"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(400, gin.H{"error": "Invalid webhook URL"})
		return
	}

	events := models.WebhookEvent(req.Events)
	if events&^models.EventAll != 0 {
		c.JSON(400, gin.H{"error": "Unknown event flags"})
		return
	}

	w, err := s.webhooks.Create(c.Request.Context(), user.ID, req.Name, req.URL, req.Secret, events)
	if err != nil {
		s.logger.Error("Failed to create webhook", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to create webhook"})
		return
	}

	c.JSON(201, webhookResponse(w))
}

func (s *Server) enableWebhook(c *gin.Context) {
	user := currentUser(c)

	err := s.webhooks.Enable(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			c.JSON(404, gin.H{"error": "Webhook not found"})
			return
		}
		s.logger.Error("Failed to enable webhook", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to enable webhook"})
		return
	}

	c.JSON(200, gin.H{"message": "Webhook enabled"})
}

func (s *Server) deleteWebhook(c *gin.Context) {
	user := currentUser(c)

	err := s.webhooks.Delete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			c.JSON(404, gin.H{"error": "Webhook not found"})
			return
		}
		s.logger.Error("Failed to delete webhook", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to delete webhook"})
		return
	}

	c.Status(204)
}

func webhookResponse(w *models.Webhook) gin.H {
	return gin.H{
		"id":                w.ID,
		"name":              w.Name,
		"url":               w.URL,
		"is_active":         w.IsActive,
		"events":            w.Events.String(),
		"created_at":        w.CreatedAt,
		"last_triggered_at": w.LastTriggeredAt,
		"failure_count":     w.FailureCount,
	}
}
