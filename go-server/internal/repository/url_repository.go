package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
)

var (
	ErrURLNotFound   = errors.New("URL not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDatabaseError = errors.New("database error")
	ErrDuplicateKey  = errors.New("duplicate URL key")
)

const (
	DefaultDBTimeout = 5 * time.Second

	uniqueViolation = "23505"
)

const urlColumns = `id, key, secret_key, target_url, is_active, clicks, owner_id, date_created`

// URLRepository defines the interface for URL data operations
type URLRepository interface {
	Create(ctx context.Context, url *model.URL) error
	KeyExists(ctx context.Context, key string) (bool, error)
	SecretKeyExists(ctx context.Context, secretKey string) (bool, error)
	FindByKey(ctx context.Context, key string) (*model.URL, error)
	FindBySecretKey(ctx context.Context, secretKey string) (*model.URL, error)
	IncrementClicks(ctx context.Context, key string) (*model.URL, error)
	Deactivate(ctx context.Context, secretKey string, ownerID uuid.UUID) (*model.URL, error)
	Delete(ctx context.Context, secretKey string, ownerID uuid.UUID) (*model.URL, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.URL, error)
}

// PostgresURLRepository implements URLRepository using PostgreSQL
type PostgresURLRepository struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewPostgresURLRepository creates a new PostgresURLRepository
func NewPostgresURLRepository(db *pgxpool.Pool, timeout time.Duration) *PostgresURLRepository {
	if timeout <= 0 {
		timeout = DefaultDBTimeout
	}
	return &PostgresURLRepository{
		db:      db,
		timeout: timeout,
		logger:  zap.L().With(zap.String("component", "PostgresURLRepository")),
	}
}

// Create inserts url and fills its generated columns. A key or secret key
// collision is reported as ErrDuplicateKey so the caller can retry.
func (r *PostgresURLRepository) Create(ctx context.Context, url *model.URL) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `INSERT INTO urls (key, secret_key, target_url, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, clicks, date_created`

	err := r.db.QueryRow(ctx, query, url.Key, url.SecretKey, url.TargetURL, url.OwnerID).
		Scan(&url.ID, &url.IsActive, &url.Clicks, &url.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn("URL key collision on insert", zap.String("key", url.Key))
			return ErrDuplicateKey
		}
		r.logger.Error("Failed to insert URL", zap.Error(err), zap.String("key", url.Key))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	r.logger.Info("New URL created", zap.String("key", url.Key))
	return nil
}

// KeyExists checks if a given short key is already taken
func (r *PostgresURLRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM urls WHERE key = $1)", key)
}

// SecretKeyExists checks if a given secret key is already taken
func (r *PostgresURLRepository) SecretKeyExists(ctx context.Context, secretKey string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM urls WHERE secret_key = $1)", secretKey)
}

func (r *PostgresURLRepository) exists(ctx context.Context, query, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		r.logger.Error("Failed to check key existence", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return exists, nil
}

// FindByKey retrieves a URL by its short key, active or not
func (r *PostgresURLRepository) FindByKey(ctx context.Context, key string) (*model.URL, error) {
	return r.queryOne(ctx, "SELECT "+urlColumns+" FROM urls WHERE key = $1", key)
}

// FindBySecretKey retrieves a URL by its secret management key
func (r *PostgresURLRepository) FindBySecretKey(ctx context.Context, secretKey string) (*model.URL, error) {
	return r.queryOne(ctx, "SELECT "+urlColumns+" FROM urls WHERE secret_key = $1", secretKey)
}

// IncrementClicks atomically adds one click to an active URL and returns the
// updated row. Missing and inactive URLs both yield ErrURLNotFound.
func (r *PostgresURLRepository) IncrementClicks(ctx context.Context, key string) (*model.URL, error) {
	return r.queryOne(ctx,
		`UPDATE urls SET clicks = clicks + 1
		WHERE key = $1 AND is_active
		RETURNING `+urlColumns,
		key)
}

// Deactivate clears the active flag of the URL owned by ownerID. Missing and
// foreign URLs both yield ErrURLNotFound.
func (r *PostgresURLRepository) Deactivate(ctx context.Context, secretKey string, ownerID uuid.UUID) (*model.URL, error) {
	return r.queryOne(ctx,
		`UPDATE urls SET is_active = FALSE
		WHERE secret_key = $1 AND owner_id = $2
		RETURNING `+urlColumns,
		secretKey, ownerID)
}

// Delete removes the URL owned by ownerID and returns the removed row.
func (r *PostgresURLRepository) Delete(ctx context.Context, secretKey string, ownerID uuid.UUID) (*model.URL, error) {
	return r.queryOne(ctx,
		`DELETE FROM urls
		WHERE secret_key = $1 AND owner_id = $2
		RETURNING `+urlColumns,
		secretKey, ownerID)
}

// ListByOwner returns every URL of ownerID in creation order
func (r *PostgresURLRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx,
		"SELECT "+urlColumns+" FROM urls WHERE owner_id = $1 ORDER BY date_created, id",
		ownerID)
	if err != nil {
		r.logger.Error("Failed to list URLs", zap.Error(err), zap.String("owner_id", ownerID.String()))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	urls, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.URL, error) {
		var u model.URL
		err := scanURL(row, &u)
		return u, err
	})
	if err != nil {
		r.logger.Error("Failed to scan URLs", zap.Error(err), zap.String("owner_id", ownerID.String()))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return urls, nil
}

func (r *PostgresURLRepository) queryOne(ctx context.Context, query string, args ...any) (*model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := &model.URL{}
	if err := scanURL(r.db.QueryRow(ctx, query, args...), url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		r.logger.Error("Database query error", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return url, nil
}

func scanURL(row pgx.Row, u *model.URL) error {
	return row.Scan(&u.ID, &u.Key, &u.SecretKey, &u.TargetURL, &u.IsActive, &u.Clicks, &u.OwnerID, &u.CreatedAt)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
