package server

import (
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/auth"
	"github.com/aegiscore/aegis/internal/models"
)

// ==================== Account registration and login ====================

func (s *Server) register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required,max=100"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	session, err := s.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			c.JSON(409, gin.H{"error": "Email already registered"})
			return
		}
		s.logger.Error("Registration failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(201, sessionResponse(session))
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	session, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(401, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error("Login failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(200, sessionResponse(session))
}

func sessionResponse(session *auth.Session) gin.H {
	return gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       userResponse(session.User, 0),
	}
}

func userResponse(user *models.User, requestsToday int) gin.H {
	return gin.H{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"plan":           user.Plan.String(),
		"daily_limit":    user.Plan.DailyLimit(),
		"requests_today": requestsToday,
		"created_at":     user.CreatedAt,
	}
}

// ==================== User profile and stats ====================

func (s *Server) currentUserProfile(c *gin.Context) {
	user := currentUser(c)

	stats, err := s.logs.Stats(c.Request.Context(), user.ID, time.Now())
	if err != nil {
		s.logger.Error("Failed to load usage stats", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(200, userResponse(user, stats.RequestsToday))
}

func (s *Server) userStats(c *gin.Context) {
	user := currentUser(c)

	stats, err := s.logs.Stats(c.Request.Context(), user.ID, time.Now())
	if err != nil {
		s.logger.Error("Failed to load usage stats", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to load stats"})
		return
	}

	dailyLimit := user.Plan.DailyLimit()
	usagePercentage := 0.0
	if dailyLimit > 0 && dailyLimit != math.MaxInt {
		usagePercentage = math.Round(float64(stats.RequestsToday)/float64(dailyLimit)*100*100) / 100
	}

	c.JSON(200, gin.H{
		"requests_today":      stats.RequestsToday,
		"requests_this_month": stats.RequestsThisMonth,
		"daily_limit":         dailyLimit,
		"usage_percentage":    usagePercentage,
		"last_30_days":        stats.Last30Days,
	})
}

func (s *Server) changePassword(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	err := s.auth.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(400, gin.H{"error": "Current password is incorrect"})
			return
		}
		s.logger.Error("Password change failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Password change failed"})
		return
	}

	c.JSON(200, gin.H{"message": "Password changed successfully"})
}

// deleteAccount removes the user and, through the cascade constraints,
// every key, request log and webhook the account owns.
func (s *Server) deleteAccount(c *gin.Context) {
	user := currentUser(c)

	if err := s.users.Delete(c.Request.Context(), user.ID); err != nil {
		s.logger.Error("Account deletion failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Account deletion failed"})
		return
	}

	s.logger.Info("User account deleted", zap.String("user_id", user.ID))
	c.JSON(200, gin.H{"message": "Account deleted successfully"})
}

// ==================== Plan catalog ====================

func (s *Server) listPlans(c *gin.Context) {
	c.JSON(200, []gin.H{
		{
			"name":          "Free",
			"description":   "Perfect for testing and small projects",
			"daily_limit":   models.PlanFree.DailyLimit(),
			"price_monthly": 0,
			"features": []string{
				"100 requests/day",
				"5 API keys",
				"Basic toxicity detection",
				"Community support",
			},
		},
		{
			"name":          "Starter",
			"description":   "Great for growing applications",
			"daily_limit":   models.PlanStarter.DailyLimit(),
			"price_monthly": 9.99,
			"features": []string{
				"1,000 requests/day",
				"10 API keys",
				"Full toxicity analysis",
				"Webhook notifications",
				"Email support",
			},
		},
		{
			"name":          "Pro",
			"description":   "For professional applications",
			"daily_limit":   models.PlanPro.DailyLimit(),
			"price_monthly": 49.99,
			"features": []string{
				"10,000 requests/day",
				"10 API keys",
				"Full toxicity analysis",
				"Webhook notifications",
				"Priority support",
				"Usage analytics",
				"Batch processing",
			},
		},
		{
			"name":          "Enterprise",
			"description":   "Custom solutions for large organizations",
			"daily_limit":   models.PlanEnterprise.DailyLimit(),
			"price_monthly": -1,
			"features": []string{
				"Unlimited requests",
				"Full toxicity analysis",
				"Custom webhooks",
				"Dedicated support",
				"SLA guarantee",
			},
		},
	})
}

func (s *Server) planLimits(c *gin.Context) {
	c.JSON(200, gin.H{
		"free":       gin.H{"daily_requests": models.PlanFree.DailyLimit(), "api_keys": models.PlanFree.MaxAPIKeys()},
		"starter":    gin.H{"daily_requests": models.PlanStarter.DailyLimit(), "api_keys": models.PlanStarter.MaxAPIKeys()},
		"pro":        gin.H{"daily_requests": models.PlanPro.DailyLimit(), "api_keys": models.PlanPro.MaxAPIKeys()},
		"enterprise": gin.H{"daily_requests": models.PlanEnterprise.DailyLimit(), "api_keys": models.PlanEnterprise.MaxAPIKeys()},
	})
}
