// Package validation holds the shared go-playground validator instance and
// the target URL rules.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxURLLength matches the width of the urls.target_url column.
const MaxURLLength = 2048

var ErrInvalidURL = errors.New("invalid URL format")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the process-wide validator. It caches struct metadata,
// so it must be shared rather than rebuilt per request.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("http_url", isHTTPURL)
	})
	return validate
}

// Struct validates s against its `validate` tags.
func Struct(s interface{}) error {
	return Validator().Struct(s)
}

// TargetURL checks that raw is an absolute http(s) URL with a host and
// returns it trimmed.
func TargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := Validator().Var(raw, "required,max=2048,http_url"); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, describe(err))
	}
	return raw, nil
}

func isHTTPURL(fl validator.FieldLevel) bool {
	parsed, err := url.ParseRequestURI(fl.Field().String())
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return "target_url is required"
		case "max":
			return fmt.Sprintf("target_url must be at most %d characters", MaxURLLength)
		default:
			return "target_url must be an absolute http or https URL"
		}
	}
	return err.Error()
}
