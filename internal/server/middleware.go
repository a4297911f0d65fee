package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
)

// Credential headers for the two moderation schemes.
const (
	apiKeyHeader      = "X-Api-Key"
	accessTokenHeader = "X-Access-Token"
)

// Context keys set by the auth middlewares.
const (
	ctxUser   = "user"
	ctxAPIKey = "api_key"
	ctxToken  = "access_token"
)

// loggerMiddleware logs HTTP requests
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware handles CORS
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.cfg.Security.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			}
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key, X-Access-Token")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// userAuthMiddleware validates the session JWT for the owner-facing
// surface and attaches the user to the request context.
func (s *Server) userAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(401, gin.H{"error": "Missing Authorization header"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		user, err := s.auth.ValidateSession(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid or expired session"})
			c.Abort()
			return
		}

		c.Set(ctxUser, user)
		c.Next()
	}
}

// apiKeyAuthMiddleware resolves the X-Api-Key credential. Quota is not
// enforced here; the moderation pipeline does that so the rate-limit
// event carries key context.
func (s *Server) apiKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyString := c.GetHeader(apiKeyHeader)
		if keyString == "" {
			c.JSON(401, gin.H{
				"error":   "API Key is required",
				"message": "Please provide your API key in the " + apiKeyHeader + " header",
			})
			c.Abort()
			return
		}

		key, err := s.keys.Validate(c.Request.Context(), keyString)
		if err != nil {
			s.logger.Warn("Invalid API key attempt",
				zap.String("key_prefix", models.MaskKey(keyString)),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(401, gin.H{
				"error":   "Invalid API Key",
				"message": "The provided API key is invalid, expired, or has been revoked",
			})
			c.Abort()
			return
		}

		c.Set(ctxAPIKey, key)
		c.Set(ctxUser, key.User)
		c.Next()
	}
}

// tokenAuthMiddleware resolves the X-Access-Token credential for the
// anonymous scheme.
func (s *Server) tokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader(accessTokenHeader)
		if tokenString == "" {
			c.JSON(401, gin.H{
				"error":   "Access token is required",
				"message": "Provide your token in the " + accessTokenHeader + " header. Generate one at POST /api/tokens/generate",
			})
			c.Abort()
			return
		}

		t, err := s.tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			s.logger.Warn("Invalid access token attempt",
				zap.String("token_prefix", models.MaskKey(tokenString)),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(401, gin.H{
				"error":   "Invalid or expired token",
				"message": "Generate a new token at POST /api/tokens/generate",
			})
			c.Abort()
			return
		}

		c.Set(ctxToken, t)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ctxUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func currentAPIKey(c *gin.Context) *models.APIKey {
	if v, ok := c.Get(ctxAPIKey); ok {
		if key, ok := v.(*models.APIKey); ok {
			return key
		}
	}
	return nil
}

func currentToken(c *gin.Context) *models.AccessToken {
	if v, ok := c.Get(ctxToken); ok {
		if t, ok := v.(*models.AccessToken); ok {
			return t
		}
	}
	return nil
}
