package server

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/apikey"
	"github.com/aegiscore/aegis/internal/models"
)

func (s *Server) listKeys(c *gin.Context) {
	user := currentUser(c)

	keys, err := s.keys.List(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("Failed to list API keys", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to list API keys"})
		return
	}

	out := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		out = append(out, gin.H{
			"id":                k.ID,
			"key":               models.MaskKey(k.Key),
			"name":              k.Name,
			"is_active":         k.IsActive,
			"created_at":        k.CreatedAt,
			"expires_at":        k.ExpiresAt,
			"last_used_at":      k.LastUsedAt,
			"requests_today":    k.RequestsToday,
			"requests_reset_at": k.RequestsResetAt,
		})
	}
	c.JSON(200, out)
}

func (s *Server) createKey(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		Name      string     `json:"name" binding:"required,max=100"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	key, err := s.keys.Create(c.Request.Context(), user, req.Name, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, apikey.ErrKeyLimit) {
			c.JSON(400, gin.H{"error": "Maximum API keys reached for your plan", "limit": user.Plan.MaxAPIKeys()})
			return
		}
		s.logger.Error("Failed to create API key", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to create API key"})
		return
	}

	// The only response that ever carries the full key string.
	c.JSON(201, gin.H{
		"id":         key.ID,
		"key":        key.Key,
		"name":       key.Name,
		"created_at": key.CreatedAt,
		"expires_at": key.ExpiresAt,
		"warning":    "Save this key! It won't be shown again.",
	})
}

func (s *Server) revokeKey(c *gin.Context) {
	user := currentUser(c)

	err := s.keys.Revoke(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			c.JSON(404, gin.H{"error": "API key not found"})
			return
		}
		s.logger.Error("Failed to revoke API key", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to revoke API key"})
		return
	}

	c.JSON(200, gin.H{"message": "API key revoked successfully"})
}

func (s *Server) deleteKey(c *gin.Context) {
	user := currentUser(c)

	err := s.keys.Delete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			c.JSON(404, gin.H{"error": "API key not found"})
			return
		}
		s.logger.Error("Failed to delete API key", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to delete API key"})
		return
	}

	c.Status(204)
}
