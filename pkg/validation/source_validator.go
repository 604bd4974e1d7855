package validation

import (
	"net/url"
	"strings"

	apperrors "go-fingerprint-quality/internal/errors"
)

// Source schemes an image location may use
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeBlob  = "azblob"
	SchemeFile  = "file"
)

// SourceValidator checks image locations before they are fetched
type SourceValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewSourceValidator accepts remote sources: http(s) URLs and azblob://container/blob
func NewSourceValidator() *SourceValidator {
	return &SourceValidator{
		allowedSchemes: []string{SchemeHTTP, SchemeHTTPS, SchemeBlob},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewSourceValidatorWithOptions creates a validator with custom schemes and hosts
func NewSourceValidatorWithOptions(schemes []string, hosts []string) *SourceValidator {
	return &SourceValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// WithLocalFiles returns a copy that also accepts file:// URLs and bare paths
func (v *SourceValidator) WithLocalFiles() *SourceValidator {
	cp := *v
	cp.allowedSchemes = append(append([]string(nil), v.allowedSchemes...), SchemeFile)
	return &cp
}

// ValidateSource validates if the provided location is acceptable for scoring
func (v *SourceValidator) ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.NewValidationError("image source cannot be empty", nil)
	}

	parsed, err := url.Parse(source)
	if err != nil {
		return apperrors.NewValidationError("invalid image source format", err)
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = SchemeFile
	}
	if !v.isSchemeAllowed(scheme) {
		return apperrors.NewValidationError("image source scheme not allowed", nil)
	}

	switch scheme {
	case SchemeFile:
		if parsed.Path == "" && parsed.Host == "" {
			return apperrors.NewValidationError("file source must have a path", nil)
		}
		return nil
	case SchemeBlob:
		if parsed.Host == "" || strings.Trim(parsed.Path, "/") == "" {
			return apperrors.NewValidationError("blob source must name a container and a blob", nil)
		}
		return nil
	}

	if parsed.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if !v.isHostAllowed(parsed.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}
	return nil
}

func (v *SourceValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *SourceValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
