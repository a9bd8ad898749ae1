package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
)

// MockURLRepository is a mock implementation of URLRepository
type MockURLRepository struct {
	mock.Mock
}

func (m *MockURLRepository) Create(ctx context.Context, url *model.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockURLRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockURLRepository) SecretKeyExists(ctx context.Context, secretKey string) (bool, error) {
	args := m.Called(ctx, secretKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockURLRepository) FindByKey(ctx context.Context, key string) (*model.URL, error) {
	return m.urlResult(m.Called(ctx, key))
}

func (m *MockURLRepository) FindBySecretKey(ctx context.Context, secretKey string) (*model.URL, error) {
	return m.urlResult(m.Called(ctx, secretKey))
}

func (m *MockURLRepository) IncrementClicks(ctx context.Context, key string) (*model.URL, error) {
	return m.urlResult(m.Called(ctx, key))
}

func (m *MockURLRepository) Deactivate(ctx context.Context, secretKey string, ownerID uuid.UUID) (*model.URL, error) {
	return m.urlResult(m.Called(ctx, secretKey, ownerID))
}

func (m *MockURLRepository) Delete(ctx context.Context, secretKey string, ownerID uuid.UUID) (*model.URL, error) {
	return m.urlResult(m.Called(ctx, secretKey, ownerID))
}

func (m *MockURLRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.URL, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.URL), args.Error(1)
}

func (m *MockURLRepository) urlResult(args mock.Arguments) (*model.URL, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return m.userResult(m.Called(ctx, id))
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.userResult(m.Called(ctx, email))
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) userResult(args mock.Arguments) (*model.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func setupLogger(t *testing.T) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
}
