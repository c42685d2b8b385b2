package scrape

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind classifies a failure for callers.
type Kind string

// Failure kinds surfaced in JSON error bodies and collection reports.
const (
	KindMissingCredentials Kind = "missing_credentials"
	KindFetchFailed        Kind = "fetch_failed"
	KindParseFailed        Kind = "parse_failed"
	KindUnknown            Kind = "unknown"
)

// Sentinels marked onto concrete errors. Use errors.Is against these.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrParseFailed        = errors.New("parse failed")
)

// MissingCredentials reports which configuration values a source needs.
func MissingCredentials(platform string, fields ...string) error {
	err := errors.Newf("%s: missing credentials (%s)", platform, strings.Join(fields, ", "))
	return errors.Mark(err, ErrMissingCredentials)
}

// FetchFailed wraps cause (which may be nil) and marks it as a fetch failure.
func FetchFailed(cause error, format string, args ...any) error {
	return mark(cause, ErrFetchFailed, format, args...)
}

// ParseFailed wraps cause (which may be nil) and marks it as a parse failure.
func ParseFailed(cause error, format string, args ...any) error {
	return mark(cause, ErrParseFailed, format, args...)
}

func mark(cause, reference error, format string, args ...any) error {
	var err error
	if cause == nil {
		err = errors.Newf(format, args...)
	} else {
		err = errors.Wrapf(cause, format, args...)
	}
	return errors.Mark(err, reference)
}

// KindOf maps an error onto the failure taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return KindMissingCredentials
	case errors.Is(err, ErrFetchFailed):
		return KindFetchFailed
	case errors.Is(err, ErrParseFailed):
		return KindParseFailed
	default:
		return KindUnknown
	}
}

// HTTPStatus is the response code used when a failure of kind k ends a request.
func HTTPStatus(k Kind) int {
	switch k {
	case KindMissingCredentials:
		return http.StatusServiceUnavailable
	case KindFetchFailed:
		return http.StatusBadGateway
	case KindParseFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
