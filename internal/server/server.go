package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/apikey"
	"github.com/aegiscore/aegis/internal/auth"
	"github.com/aegiscore/aegis/internal/config"
	"github.com/aegiscore/aegis/internal/moderation"
	"github.com/aegiscore/aegis/internal/storage"
	"github.com/aegiscore/aegis/internal/token"
	"github.com/aegiscore/aegis/internal/webhook"
)

// Server represents the API server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	router *gin.Engine

	users *storage.UserStore
	logs  *storage.LogStore

	auth       *auth.Service
	keys       *apikey.Service
	tokens     *token.Service
	webhooks   *webhook.Dispatcher
	moderation *moderation.Service
}

// New creates a new server instance wired to the database at the
// configured path.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: gin.New(),
	}

	s.users = storage.NewUserStore(db)
	s.logs = storage.NewLogStore(db)

	s.auth = auth.NewService(s.users, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, logger)
	s.keys = apikey.NewService(storage.NewKeyStore(db), logger)
	s.tokens = token.NewService(storage.NewTokenStore(db), logger)
	s.webhooks = webhook.NewDispatcher(storage.NewWebhookStore(db), logger, cfg.Webhooks.Workers, cfg.Webhooks.QueueSize)

	// Without a classifier key every request goes through the
	// deterministic fallback scorer.
	var classifier moderation.Classifier
	if cfg.Moderation.APIKey != "" {
		classifier = moderation.NewPerspectiveClient(cfg.Moderation.APIURL, cfg.Moderation.APIKey, logger)
	} else {
		logger.Warn("No classifier API key configured, using fallback scorer")
	}
	s.moderation = moderation.NewService(classifier, s.logs, s.webhooks, cfg.Moderation.Threshold, logger)

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close drains the webhook delivery queue.
func (s *Server) Close() {
	s.webhooks.Close()
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		// Account registration and login
		api.POST("/auth/register", s.register)
		api.POST("/auth/login", s.login)

		// Plan catalog, public
		api.GET("/plans", s.listPlans)
		api.GET("/plans/limits", s.planLimits)

		// Anonymous access tokens
		api.POST("/tokens/generate", s.generateToken)
		api.GET("/tokens/status", s.tokenStatus)

		// Owner-facing surface, JWT session required
		authed := api.Group("/")
		authed.Use(s.userAuthMiddleware())
		{
			authed.GET("/user/me", s.currentUserProfile)
			authed.GET("/user/stats", s.userStats)
			authed.POST("/user/change-password", s.changePassword)
			authed.DELETE("/user/me", s.deleteAccount)

			authed.GET("/keys", s.listKeys)
			authed.POST("/keys", s.createKey)
			authed.POST("/keys/:id/revoke", s.revokeKey)
			authed.DELETE("/keys/:id", s.deleteKey)

			authed.GET("/webhooks", s.listWebhooks)
			authed.POST("/webhooks", s.createWebhook)
			authed.POST("/webhooks/:id/enable", s.enableWebhook)
			authed.DELETE("/webhooks/:id", s.deleteWebhook)
		}

		// Moderation, API-key scheme
		keyed := api.Group("/moderation")
		keyed.Use(s.apiKeyAuthMiddleware())
		{
			keyed.POST("/analyze", s.analyze)
			keyed.POST("/analyze/batch", s.analyzeBatch)
		}

		// Moderation, anonymous token scheme
		anon := api.Group("/moderation/token")
		anon.Use(s.tokenAuthMiddleware())
		{
			anon.POST("/analyze", s.analyzeWithToken)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
