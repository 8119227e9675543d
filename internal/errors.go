package internal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Stage identifies where a provider scrape failed.
type Stage int

const (
	StageFetch Stage = iota
	StageParse
	StageCredential
	StageUpstreamLogic
)

// String returns the string representation of Stage
func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageParse:
		return "parse"
	case StageCredential:
		return "credential"
	case StageUpstreamLogic:
		return "upstream-logic"
	default:
		return "unknown"
	}
}

// MarshalText renders the stage name in JSON payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ScrapeFailure is the single error type every provider returns.
type ScrapeFailure struct {
	Provider   string                 `json:"provider"`
	Stage      Stage                  `json:"stage"`
	Message    string                 `json:"message"`
	Severity   ErrorSeverity          `json:"-"`
	URL        string                 `json:"url,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"` // seconds
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *ScrapeFailure) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ScrapeFailure) Unwrap() error {
	return e.Cause
}

// DetailedError returns a detailed error message with all available information
func (e *ScrapeFailure) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s failure (%s)", e.Severity.String(), e.Stage.String(), e.Provider))

	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %s", RedactURLs(e.Cause.Error())))
	}

	// URL is always redacted
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("Retry after: %d seconds", e.RetryAfter))
	}

	return strings.Join(parts, "\n")
}

// NewScrapeFailure creates a failure with the stage's default severity and suggestion.
func NewScrapeFailure(provider string, stage Stage, message string) *ScrapeFailure {
	return &ScrapeFailure{
		Provider:   provider,
		Stage:      stage,
		Message:    message,
		Severity:   getDefaultSeverity(stage),
		Suggestion: getDefaultSuggestion(stage),
		Context:    make(map[string]interface{}),
	}
}

// NewFetchError reports a transport or HTTP status failure.
func NewFetchError(provider string, cause error) *ScrapeFailure {
	f := NewScrapeFailure(provider, StageFetch, "request failed")
	f.Cause = cause
	return f
}

// NewParseError reports that an expected element or field was not found.
func NewParseError(provider, message string) *ScrapeFailure {
	return NewScrapeFailure(provider, StageParse, message)
}

// NewCredentialError reports a required credential that is not configured.
func NewCredentialError(provider, credential string) *ScrapeFailure {
	return NewScrapeFailure(provider, StageCredential, fmt.Sprintf("%s not provided", credential)).
		WithContext("credential", credential)
}

// NewUpstreamError reports a well-formed response that says the file is
// unavailable, or any other refusal by the host.
func NewUpstreamError(provider, message string) *ScrapeFailure {
	return NewScrapeFailure(provider, StageUpstreamLogic, message)
}

// WithCause attaches an underlying error.
func (e *ScrapeFailure) WithCause(cause error) *ScrapeFailure {
	e.Cause = cause
	return e
}

// WithSuggestion adds a custom suggestion to the error
func (e *ScrapeFailure) WithSuggestion(suggestion string) *ScrapeFailure {
	e.Suggestion = suggestion
	return e
}

// WithURL adds URL context to the error (will be redacted in logs)
func (e *ScrapeFailure) WithURL(url string) *ScrapeFailure {
	e.URL = url
	return e
}

// WithRetryAfter sets the retry delay for rate limit errors
func (e *ScrapeFailure) WithRetryAfter(seconds int) *ScrapeFailure {
	e.RetryAfter = seconds
	return e
}

// WithContext adds context information to the error
func (e *ScrapeFailure) WithContext(key string, value interface{}) *ScrapeFailure {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeFailure) IsRetryable() bool {
	switch e.Stage {
	case StageFetch:
		return !errors.Is(e.Cause, context.Canceled)
	case StageUpstreamLogic:
		return e.RetryAfter > 0
	default:
		return false
	}
}

// IsCritical returns true if the error is critical and should stop execution
func (e *ScrapeFailure) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// AsScrapeFailure extracts a ScrapeFailure from an error chain.
func AsScrapeFailure(err error) (*ScrapeFailure, bool) {
	var f *ScrapeFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// UnsupportedError is returned when no rule claims a URL or the URL is malformed.
type UnsupportedError struct {
	Reason string
	URL    string
}

// Error implements the error interface
func (e *UnsupportedError) Error() string {
	return e.Reason
}

// NewUnsupportedError creates an UnsupportedError
func NewUnsupportedError(url, reason string) *UnsupportedError {
	return &UnsupportedError{URL: url, Reason: reason}
}

// IsUnsupported reports whether err (or anything it wraps) is an UnsupportedError.
func IsUnsupported(err error) bool {
	var u *UnsupportedError
	return errors.As(err, &u)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// getDefaultSuggestion returns a default suggestion for a failure stage
func getDefaultSuggestion(stage Stage) string {
	switch stage {
	case StageFetch:
		return "The host could not be reached or returned an error status. Try again later or through a proxy"
	case StageParse:
		return "The page layout may have changed or the link is invalid"
	case StageCredential:
		return "Set the required credential in the environment, config file or cookie file"
	case StageUpstreamLogic:
		return "The host refused the request. Verify the link is still valid"
	default:
		return "Please check the error details and try again"
	}
}

// getDefaultSeverity returns the default severity for a failure stage
func getDefaultSeverity(stage Stage) ErrorSeverity {
	switch stage {
	case StageFetch:
		return SeverityWarning
	case StageCredential:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// redactSensitiveURL redacts sensitive information from URLs
func redactSensitiveURL(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		return url[:i] + "?[REDACTED]"
	}
	return url
}

// RedactURLs replaces the query string of every http(s) URL inside s.
func RedactURLs(s string) string {
	return urlQueryPattern.ReplaceAllString(s, "$1?[REDACTED]")
}
