package server

import (
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/token"
)

func (s *Server) generateToken(c *gin.Context) {
	t, err := s.tokens.Issue(c.Request.Context(), c.ClientIP())
	if err != nil {
		if errors.Is(err, token.ErrTokenLimit) {
			c.JSON(429, gin.H{
				"error":   "Token limit reached",
				"message": "You already hold the maximum number of active tokens. Wait for one to expire or reuse an existing token.",
				"limit":   models.MaxTokensPerIP,
			})
			return
		}
		s.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(200, gin.H{
		"token":              t.Token,
		"expires_at":         t.ExpiresAt,
		"expires_in_minutes": int(models.TokenTTL.Minutes()),
		"usage":              "Include the token in the '" + accessTokenHeader + "' header to use the moderation API",
	})
}

func (s *Server) tokenStatus(c *gin.Context) {
	tokenString := c.GetHeader(accessTokenHeader)
	if tokenString == "" {
		c.JSON(401, gin.H{
			"error":   "Token is required",
			"message": "Include the token in the '" + accessTokenHeader + "' header",
		})
		return
	}

	t, err := s.tokens.Validate(c.Request.Context(), tokenString)
	if err != nil {
		c.JSON(401, gin.H{"error": "Invalid or expired token"})
		return
	}

	remaining := time.Until(t.ExpiresAt).Minutes()
	c.JSON(200, gin.H{
		"is_active":         t.IsActive,
		"expires_at":        t.ExpiresAt,
		"remaining_minutes": math.Max(0, math.Round(remaining*10)/10),
		"request_count":     t.RequestCount,
		"created_at":        t.CreatedAt,
	})
}
