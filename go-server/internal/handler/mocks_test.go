package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
)

type MockURLService struct {
	mock.Mock
}

func (m *MockURLService) Create(ctx context.Context, targetURL string, ownerID *uuid.UUID) (*model.URL, error) {
	return urlResult(m.Called(ctx, targetURL, ownerID))
}

func (m *MockURLService) RedirectAndCount(ctx context.Context, key string) (*model.URL, error) {
	return urlResult(m.Called(ctx, key))
}

func (m *MockURLService) GetPublic(ctx context.Context, key string) (*model.URL, error) {
	return urlResult(m.Called(ctx, key))
}

func (m *MockURLService) GetOwned(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error) {
	return urlResult(m.Called(ctx, secretKey, requesterID))
}

func (m *MockURLService) Deactivate(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error) {
	return urlResult(m.Called(ctx, secretKey, requesterID))
}

func (m *MockURLService) Delete(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error) {
	return urlResult(m.Called(ctx, secretKey, requesterID))
}

func (m *MockURLService) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]model.URL, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.URL), args.Error(1)
}

func urlResult(args mock.Arguments) (*model.URL, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	return userResult(m.Called(ctx, username, email, password))
}

func (m *MockAuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	return userResult(m.Called(ctx, email, password))
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Resolve(ctx context.Context, token string) (*model.User, error) {
	return userResult(m.Called(ctx, token))
}

func (m *MockAuthService) RequireActive(user *model.User) error {
	if !user.IsActive {
		return service.ErrInactiveUser
	}
	return nil
}

func (m *MockAuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func userResult(args mock.Arguments) (*model.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func setupTest(t *testing.T) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	gin.SetMode(gin.TestMode)
}

func perform(router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
