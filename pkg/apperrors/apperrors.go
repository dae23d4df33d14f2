package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion pipeline. Adapters and the
// dispatcher wrap these so callers can branch on error kind with
// errors.Is without caring which platform produced the failure.
var (
	// ErrUnsupportedURL means no adapter matches the URL. User input
	// error, a hard rejection.
	ErrUnsupportedURL = errors.New("unsupported url")

	// ErrNotFound means the upstream confirmed the post/video/question
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable means the upstream is unreachable or still
	// rate-limited after retries were exhausted. Retryable later.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSelectorNotFound means a DOM selector the scraping adapters
	// depend on stopped matching the upstream markup. Signals adapter
	// maintenance, not a transient condition.
	ErrSelectorNotFound = errors.New("selector not found")

	// ErrConfiguration means a required credential or setting is absent.
	ErrConfiguration = errors.New("configuration error")
)

// Error carries a message and a wrapped cause around one of the
// sentinels above.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// UnsupportedURL builds an ErrUnsupportedURL error for the given URL.
func UnsupportedURL(url string) error {
	return &Error{
		Message: fmt.Sprintf("no adapter matches url %q", url),
		Err:     ErrUnsupportedURL,
	}
}

// Kind returns the short name of the sentinel in err's chain, or
// "internal" when none matches. Used for per-URL error reporting in
// batch results and for alerting labels.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedURL):
		return "unsupported_url"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrSelectorNotFound):
		return "selector_not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnsupportedURL returns true if no adapter matched the URL.
func IsUnsupportedURL(err error) bool {
	return errors.Is(err, ErrUnsupportedURL)
}

// IsSourceUnavailable returns true if the upstream denied or errored
// irrecoverably.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsSelectorNotFound returns true if upstream markup drifted under a
// scraping adapter.
func IsSelectorNotFound(err error) bool {
	return errors.Is(err, ErrSelectorNotFound)
}

// IsConfiguration returns true if a required credential is missing.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
