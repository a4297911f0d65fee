package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/moderation"
)

func (s *Server) analyze(c *gin.Context) {
	var req moderation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}

	result, err := s.moderation.Analyze(c.Request.Context(), s.keyPrincipal(c), req)
	if err != nil {
		s.moderationError(c, err)
		return
	}
	c.JSON(200, result)
}

func (s *Server) analyzeBatch(c *gin.Context) {
	var req moderation.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}

	result, err := s.moderation.AnalyzeBatch(c.Request.Context(), s.keyPrincipal(c), req)
	if err != nil {
		s.moderationError(c, err)
		return
	}
	c.JSON(200, result)
}

func (s *Server) analyzeWithToken(c *gin.Context) {
	var req moderation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}

	principal := &moderation.TokenPrincipal{
		Token:  currentToken(c),
		Tokens: s.tokens,
	}
	result, err := s.moderation.Analyze(c.Request.Context(), principal, req)
	if err != nil {
		s.moderationError(c, err)
		return
	}
	c.JSON(200, result)
}

func (s *Server) keyPrincipal(c *gin.Context) *moderation.KeyPrincipal {
	return &moderation.KeyPrincipal{
		Key:       currentAPIKey(c),
		User:      currentUser(c),
		Keys:      s.keys,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Endpoint:  c.FullPath(),
	}
}

// moderationError maps service errors onto HTTP responses shared by all
// analyze endpoints.
func (s *Server) moderationError(c *gin.Context, err error) {
	var quotaErr *moderation.QuotaError
	switch {
	case errors.As(err, &quotaErr):
		c.JSON(429, gin.H{
			"error": "Daily rate limit exceeded",
			"limit": quotaErr.Limit,
		})
	case errors.Is(err, moderation.ErrEmptyText):
		c.JSON(400, gin.H{"error": "Text is required"})
	case errors.Is(err, moderation.ErrEmptyBatch):
		c.JSON(400, gin.H{"error": "At least one text is required"})
	case errors.Is(err, moderation.ErrBatchTooLarge):
		c.JSON(400, gin.H{
			"error": "Too many texts",
			"max":   moderation.MaxBatchSize,
		})
	default:
		s.logger.Error("Moderation request failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Analysis failed"})
	}
}
