package service

import (
	"context"
	"errors"
	"strings"

	"food-marketplace/config"
	"food-marketplace/internal/models"
	"food-marketplace/internal/redisclient"
	"food-marketplace/internal/store"
	"food-marketplace/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles accounts, sessions and vendor promotion
type UserService struct {
	repo     UserRepository
	sessions SessionStore
	events   EventPublisher
	cfg      config.AuthConfig
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(repo UserRepository, sessions SessionStore, events EventPublisher, cfg config.AuthConfig) *UserService {
	return &UserService{
		repo:     repo,
		sessions: sessions,
		events:   events,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Level    int    `json:"level"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionTTL is how long a login stays valid
func (s *UserService) SessionTTL() int {
	return int(s.cfg.SessionTTL.Seconds())
}

// SignUp registers a new user with a bcrypt-hashed password
func (s *UserService) SignUp(ctx context.Context, req *SignUpRequest) (user *models.User, err error) {
	ctx, span := util.StartSpan(ctx, "UserService.SignUp", attribute.String("user.username", req.Username))
	defer func() { util.EndSpan(span, err) }()

	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	if req.Name == "" || req.Username == "" || req.Password == "" {
		return nil, invalid("name, username and password are required")
	}
	if req.Level < models.LevelCustomer || req.Level > models.LevelAdmin {
		return nil, invalid("level must be 0, 1 or 2")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, invalid("password cannot be hashed: %v", err)
	}

	user = &models.User{
		UserID:   uuid.New().String(),
		Name:     req.Name,
		Username: req.Username,
		Password: string(hash),
		Level:    req.Level,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, classify("create user", err)
	}

	util.UsersRegisteredTotal.Inc()
	s.logger.Info("User registered", zap.String("user_id", user.UserID), zap.Int("level", user.Level))
	return user, nil
}

// Login checks the credentials and opens a session. It returns the session
// token together with the user.
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (token string, user *models.User, err error) {
	ctx, span := util.StartSpan(ctx, "UserService.Login", attribute.String("user.username", req.Username))
	defer func() { util.EndSpan(span, err) }()

	user, err = s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.LoginsTotal.WithLabelValues("invalid").Inc()
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, classify("get user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		util.LoginsTotal.WithLabelValues("invalid").Inc()
		return "", nil, ErrInvalidCredentials
	}

	token, err = s.sessions.CreateSession(ctx, user.UserID, s.cfg.SessionTTL)
	if err != nil {
		return "", nil, &PersistenceError{Op: "create session", Err: err}
	}

	util.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("User logged in", zap.String("user_id", user.UserID))
	return token, user, nil
}

// Logout ends the session identified by token
func (s *UserService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotAuthenticated
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		if errors.Is(err, redisclient.ErrSessionNotFound) {
			return ErrNotAuthenticated
		}
		return &PersistenceError{Op: "delete session", Err: err}
	}
	return nil
}

// Authenticate resolves a session token to the logged-in user id
func (s *UserService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotAuthenticated
	}
	userID, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, redisclient.ErrSessionNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", &PersistenceError{Op: "get session", Err: err}
	}
	return userID, nil
}

// PromoteVendor makes userID a vendor. Promoting a vendor again is a no-op
// apart from updated_ts.
func (s *UserService) PromoteVendor(ctx context.Context, callerID, userID string) (user *models.User, err error) {
	ctx, span := util.StartSpan(ctx, "UserService.PromoteVendor", attribute.String("user.id", userID))
	defer func() { util.EndSpan(span, err) }()

	if s.cfg.AdminOnlyVendorPromotion {
		if callerID == "" {
			return nil, ErrNotAuthenticated
		}
		caller, err := s.repo.GetUserByID(ctx, callerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrNotAuthenticated
			}
			return nil, classify("get user", err)
		}
		if !caller.IsAdmin() {
			return nil, ErrAdminOnly
		}
	}
	if userID == "" {
		return nil, invalid("user_id is required")
	}

	user, err = s.repo.UpdateUserLevel(ctx, userID, models.LevelVendor)
	if err != nil {
		return nil, classify("promote vendor", mapNotFound(err, ErrUserNotFound))
	}

	s.logger.Info("User promoted to vendor", zap.String("user_id", userID), zap.String("by", callerID))

	event := &models.VendorPromotedEvent{
		BaseEvent: newBaseEvent(models.EventTypeVendorPromoted),
		UserID:    user.UserID,
	}
	if err := s.events.PublishVendorPromoted(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeVendorPromoted).Inc()
		s.logger.Error("Failed to publish VendorPromoted event", zap.String("user_id", userID), zap.Error(err))
	}
	return user, nil
}
