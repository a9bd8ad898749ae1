package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
	userColumns        = `id, username, email, hashed_password, is_active, date_created`
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, timeout time.Duration) UserRepository {
	if timeout <= 0 {
		timeout = DefaultDBTimeout
	}
	return &userRepository{
		db:      db,
		timeout: timeout,
		logger:  zap.L().With(zap.String("component", "UserRepository")),
	}
}

// Create inserts user. The unique constraints are the source of truth for
// duplicate usernames and emails.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query :=
		`INSERT INTO users (username, email, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING id, is_active, date_created`

	err := r.db.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.IsActive, &user.CreatedAt)
	if err != nil {
		switch uniqueConstraint(err) {
		case usernameConstraint:
			return ErrDuplicateUsername
		case emailConstraint:
			return ErrDuplicateEmail
		}
		r.logger.Error("Failed to insert user", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

// Delete removes the user; owned URLs go with it through ON DELETE CASCADE.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.Error(err), zap.String("user_id", id.String()))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) queryOne(ctx context.Context, query string, arg any) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := &model.User{}
	err := r.db.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Database query error", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return user, nil
}
