package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 30 * time.Minute

var (
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrMissingSubject       = errors.New("token has no subject")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrEmptySecret          = errors.New("signing secret is empty")
)

// SecretResolver supplies the signing secret. Rotation can be added behind
// this interface without touching callers.
type SecretResolver interface {
	Secret(ctx context.Context) ([]byte, error)
}

// StaticSecret is a secret fixed for the lifetime of the process.
type StaticSecret []byte

func (s StaticSecret) Secret(context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrEmptySecret
	}
	return s, nil
}

type CustomClaims struct {
	jwt.RegisteredClaims
}

// Service issues and verifies HMAC-signed bearer tokens whose subject is the
// user's login identifier.
type Service struct {
	secrets SecretResolver
	method  jwt.SigningMethod
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(secrets SecretResolver, algorithm string, ttl time.Duration, opts ...Option) (*Service, error) {
	method, err := signingMethod(algorithm)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Service{
		secrets: secrets,
		method:  method,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	switch algorithm {
	case "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Issue returns a signed token for subject, valid for the configured TTL.
func (s *Service) Issue(ctx context.Context, subject string) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	secret, err := s.secrets.Secret(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(secret)
}

// Verify checks signature, algorithm and expiry and returns the subject.
// Every failure is reported as ErrInvalidToken.
func (s *Service) Verify(ctx context.Context, tokenStr string) (string, error) {
	secret, err := s.secrets.Secret(ctx)
	if err != nil {
		return "", err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &CustomClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, ErrMissingSubject)
	}
	return claims.Subject, nil
}
