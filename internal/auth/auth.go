// Package auth implements the owner-facing credential flow: bcrypt
// password hashing and 7-day JWT sessions for the dashboard API.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/storage"
)

var (
	// ErrEmailTaken is returned by Register when the email is already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown emails, wrong passwords and
	// deactivated accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession is returned for malformed, expired or orphaned JWTs.
	ErrInvalidSession = errors.New("invalid session token")
)

const sessionTTL = 7 * 24 * time.Hour

// Claims is the JWT payload for a user session.
type Claims struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
	jwt.RegisteredClaims
}

// Session is a freshly minted login result.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Service issues and validates user sessions.
type Service struct {
	users  *storage.UserStore
	secret []byte
	issuer string
	logger *zap.Logger
}

func NewService(users *storage.UserStore, secret, issuer string, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		secret: []byte(secret),
		issuer: issuer,
		logger: logger,
	}
}

// Register creates a Free-plan account and returns a session for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Plan:         models.PlanFree,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("New user registered", zap.String("email", user.Email))
	return s.newSession(user)
}

// Login verifies the credentials of an active account.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.newSession(user)
}

// ChangePassword rehashes the user's credential after verifying the
// current one. Existing sessions stay valid; only the password changes.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hash)
	now := time.Now().UTC()
	user.UpdatedAt = &now
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}

	s.logger.Info("Password changed", zap.String("user_id", user.ID))
	return nil
}

// ValidateSession parses a session JWT and loads its user.
func (s *Service) ValidateSession(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidSession
	}
	return user, nil
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	expiresAt := time.Now().Add(sessionTTL)
	claims := &Claims{
		Email: user.Email,
		Plan:  user.Plan.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Session{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}
