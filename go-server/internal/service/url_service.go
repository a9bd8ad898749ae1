package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/keygen"
	"github.com/fonsecaaso/linkkeep/go-server/internal/metrics"
	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	"github.com/fonsecaaso/linkkeep/go-server/internal/validation"
)

const DefaultMaxCreateAttempts = 3

// URLService drives the URL lifecycle: Active, then optionally Deactivated,
// then Deleted. Click counts only move on the redirect path.
type URLService struct {
	repo              repository.URLRepository
	keys              *keygen.Generator
	hideExistence     bool
	maxCreateAttempts int
	logger            *zap.Logger
}

type URLServiceOption func(*URLService)

// WithHideExistence reports unknown secret keys as ErrForbidden on
// owner-gated operations, so callers cannot probe which keys exist.
func WithHideExistence(hide bool) URLServiceOption {
	return func(s *URLService) { s.hideExistence = hide }
}

// WithMaxCreateAttempts bounds the retries after an insert lost a key race.
func WithMaxCreateAttempts(n int) URLServiceOption {
	return func(s *URLService) {
		if n > 0 {
			s.maxCreateAttempts = n
		}
	}
}

func NewURLService(repo repository.URLRepository, keys *keygen.Generator, opts ...URLServiceOption) *URLService {
	s := &URLService{
		repo:              repo,
		keys:              keys,
		maxCreateAttempts: DefaultMaxCreateAttempts,
		logger:            zap.L().With(zap.String("component", "URLService")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new active URL for ownerID (nil for anonymous URLs).
func (s *URLService) Create(ctx context.Context, targetURL string, ownerID *uuid.UUID) (*model.URL, error) {
	target, err := validation.TargetURL(targetURL)
	if err != nil {
		metrics.RecordURLCreation("invalid")
		return nil, err
	}

	for attempt := 1; attempt <= s.maxCreateAttempts; attempt++ {
		url, err := s.newURL(ctx, target, ownerID)
		if err != nil {
			metrics.RecordURLCreation("error")
			return nil, err
		}

		err = s.repo.Create(ctx, url)
		if err == nil {
			metrics.RecordURLCreation("success")
			s.logger.Info("URL shortened successfully", zap.String("key", url.Key))
			return url, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			metrics.RecordURLCreation("error")
			return nil, err
		}

		metrics.RecordKeyCollisions(1)
		s.logger.Warn("Key taken between check and insert, retrying",
			zap.String("key", url.Key),
			zap.Int("attempt", attempt),
		)
	}

	metrics.RecordURLCreation("exhausted")
	return nil, fmt.Errorf("%w: insert retried %d times", ErrKeyspaceExhausted, s.maxCreateAttempts)
}

func (s *URLService) newURL(ctx context.Context, target string, ownerID *uuid.UUID) (*model.URL, error) {
	key, collisions, err := s.keys.UniqueShortKey(ctx, s.repo.KeyExists)
	metrics.RecordKeyCollisions(collisions)
	if err != nil {
		if errors.Is(err, keygen.ErrKeyspaceExhausted) {
			s.logger.Error("Short key space exhausted", zap.Int("attempts", s.keys.MaxAttempts()))
		}
		return nil, err
	}

	secretKey, collisions, err := s.keys.UniqueSecretKey(ctx, key, s.repo.SecretKeyExists)
	metrics.RecordKeyCollisions(collisions)
	if err != nil {
		return nil, err
	}

	return &model.URL{
		Key:       key,
		SecretKey: secretKey,
		TargetURL: target,
		OwnerID:   ownerID,
	}, nil
}

// RedirectAndCount counts one click on an active URL and returns it.
// A known but inactive key yields ErrURLDeactivated, an unknown one ErrURLNotFound.
func (s *URLService) RedirectAndCount(ctx context.Context, key string) (*model.URL, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		metrics.RecordRedirect("not_found")
		return nil, ErrURLNotFound
	}

	url, err := s.repo.IncrementClicks(ctx, key)
	if err == nil {
		metrics.RecordRedirect("success")
		return url, nil
	}
	if !errors.Is(err, repository.ErrURLNotFound) {
		metrics.RecordRedirect("error")
		return nil, err
	}

	_, err = s.activeByKey(ctx, key)
	switch {
	case errors.Is(err, ErrURLDeactivated):
		metrics.RecordRedirect("deactivated")
	case errors.Is(err, ErrURLNotFound):
		metrics.RecordRedirect("not_found")
	case err == nil:
		// Reactivation is impossible, so the URL must have been deleted in between.
		metrics.RecordRedirect("not_found")
		return nil, ErrURLNotFound
	default:
		metrics.RecordRedirect("error")
	}
	return nil, err
}

// GetPublic returns an active URL by short key without counting a click.
func (s *URLService) GetPublic(ctx context.Context, key string) (*model.URL, error) {
	return s.activeByKey(ctx, strings.TrimSpace(key))
}

func (s *URLService) activeByKey(ctx context.Context, key string) (*model.URL, error) {
	url, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if !url.IsActive {
		return nil, ErrURLDeactivated
	}
	return url, nil
}

// GetOwned returns the URL behind secretKey if requesterID owns it.
func (s *URLService) GetOwned(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error) {
	url, err := s.repo.FindBySecretKey(ctx, secretKey)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			err = s.notFound()
		}
		metrics.RecordManagement("info", outcome(err))
		return nil, err
	}
	if !url.OwnedBy(requesterID) {
		metrics.RecordManagement("info", outcome(ErrForbidden))
		return nil, ErrForbidden
	}

	metrics.RecordManagement("info", outcome(nil))
	return url, nil
}

// Deactivate flips the URL to inactive. Deactivating twice is not an error.
func (s *URLService) Deactivate(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error) {
	url, err := s.repo.Deactivate(ctx, secretKey, requesterID)
	if errors.Is(err, repository.ErrURLNotFound) {
		err = s.classifyMiss(ctx, secretKey, requesterID)
	}
	metrics.RecordManagement("deactivate", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("URL deactivated", zap.String("key", url.Key))
	return url, nil
}

// Delete removes the URL for good.
func (s *URLService) Delete(ctx context.Context, secretKey string, requesterID uuid.UUID) (*model.URL, error) {
	url, err := s.repo.Delete(ctx, secretKey, requesterID)
	if errors.Is(err, repository.ErrURLNotFound) {
		err = s.classifyMiss(ctx, secretKey, requesterID)
	}
	metrics.RecordManagement("delete", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("URL deleted", zap.String("key", url.Key))
	return url, nil
}

func (s *URLService) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]model.URL, error) {
	urls, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if urls == nil {
		urls = []model.URL{}
	}
	return urls, nil
}

// classifyMiss turns a conditional update that matched no row into
// ErrURLNotFound or ErrForbidden.
func (s *URLService) classifyMiss(ctx context.Context, secretKey string, requesterID uuid.UUID) error {
	url, err := s.repo.FindBySecretKey(ctx, secretKey)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return s.notFound()
		}
		return err
	}
	if !url.OwnedBy(requesterID) {
		s.logger.Warn("Ownership check failed",
			zap.String("key", url.Key),
			zap.String("requester_id", requesterID.String()),
		)
		return ErrForbidden
	}
	// Owned but missed: a concurrent delete won.
	return s.notFound()
}

func (s *URLService) notFound() error {
	if s.hideExistence {
		return ErrForbidden
	}
	return ErrURLNotFound
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrURLNotFound):
		return "not_found"
	default:
		return "error"
	}
}
