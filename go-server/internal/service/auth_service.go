package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/metrics"
	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	"github.com/fonsecaaso/linkkeep/go-server/internal/security"
)

// TokenService issues and verifies bearer tokens. *token.Service implements it.
type TokenService interface {
	Issue(ctx context.Context, subject string) (string, error)
	Verify(ctx context.Context, token string) (string, error)
}

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Resolve(ctx context.Context, token string) (*model.User, error)
	RequireActive(user *model.User) error
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	userRepo    repository.UserRepository
	hasher      security.PasswordHasher
	tokens      TokenService
	dummyDigest string
	logger      *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, hasher security.PasswordHasher, tokens TokenService) AuthService {
	logger := zap.L().With(zap.String("component", "AuthService"))

	// Unknown emails still pay for one hash comparison.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		logger.Warn("Failed to prepare dummy digest", zap.Error(err))
	}

	return &authService{
		userRepo:    userRepo,
		hasher:      hasher,
		tokens:      tokens,
		dummyDigest: dummy,
		logger:      logger,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     strings.TrimSpace(username),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Authenticate checks the credentials and returns ErrInvalidCredentials
// without saying which part was wrong.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			metrics.RecordLogin("failure")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.IsActive {
		metrics.RecordLogin("failure")
		return nil, ErrInvalidCredentials
	}

	metrics.RecordLogin("success")
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}

	tokenString, err := s.tokens.Issue(ctx, user.Email)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		return "", err
	}
	return tokenString, nil
}

// Resolve maps a bearer token to its user. Tokens whose subject no longer
// exists are invalid.
func (s *authService) Resolve(ctx context.Context, tokenString string) (*model.User, error) {
	subject, err := s.tokens.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) RequireActive(user *model.User) error {
	if !user.IsActive {
		return ErrInactiveUser
	}
	return nil
}

func (s *authService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Error("Failed to delete user", zap.Error(err), zap.String("user_id", userID.String()))
		}
		return err
	}

	s.logger.Info("User deleted", zap.String("user_id", userID.String()))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
