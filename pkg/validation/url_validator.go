package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "split-the-g/internal/errors"
)

// URLValidator checks URLs the service dials out to: the inference endpoint
// and image URLs returned by the inference workflow.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator allows http and https on any host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options.
// An empty host list allows every host.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateURL validates an absolute URL against the scheme and host lists
func (v *URLValidator) ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !slices.Contains(v.allowedSchemes, parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !slices.Contains(v.allowedHosts, parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// ValidateBaseURL is ValidateURL plus a check that the URL can be joined with
// path segments: no query string or fragment.
func (v *URLValidator) ValidateBaseURL(raw string) error {
	if err := v.ValidateURL(raw); err != nil {
		return err
	}
	parsedURL, _ := url.Parse(raw)
	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return apperrors.NewValidationError("base URL must not carry a query or fragment", nil)
	}
	return nil
}
