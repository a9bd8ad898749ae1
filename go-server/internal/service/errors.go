package service

import (
	"errors"
	"fmt"

	"github.com/fonsecaaso/linkkeep/go-server/internal/keygen"
	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	"github.com/fonsecaaso/linkkeep/go-server/internal/security"
	"github.com/fonsecaaso/linkkeep/go-server/internal/token"
	"github.com/fonsecaaso/linkkeep/go-server/internal/validation"
)

var (
	ErrInvalidURL      = validation.ErrInvalidURL
	ErrPasswordTooLong = security.ErrPasswordTooLong

	ErrDuplicateUser = errors.New("user already exists")
	ErrUsernameTaken = fmt.Errorf("%w: username already registered", ErrDuplicateUser)
	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrDuplicateUser)

	// ErrInvalidCredentials is returned for unknown users, wrong passwords
	// and inactive accounts alike.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidToken       = token.ErrInvalidToken
	ErrInactiveUser       = errors.New("inactive user")

	ErrURLNotFound       = repository.ErrURLNotFound
	ErrURLDeactivated    = errors.New("URL has been deactivated")
	ErrForbidden         = errors.New("not the owner of this URL")
	ErrKeyspaceExhausted = keygen.ErrKeyspaceExhausted
)
