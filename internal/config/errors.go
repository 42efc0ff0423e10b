package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorization.
const (
	ErrCodeConfigNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeConfigParse       = "CONFIG_PARSE"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeInvalidPackage    = "INVALID_PACKAGE"
	ErrCodeInstallRoot       = "INSTALL_ROOT"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
)

// UserError is an error with enough context for a person to fix it.
type UserError struct {
	Code       string
	Message    string
	Context    string // file, key or argument the error refers to
	Suggestion string
	Underlying error
}

// Error returns the message with its context.
func (e *UserError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Context)
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is matches another UserError with the same code.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	return ok && e.Code == t.Code
}

// Format renders the code, message, location and suggestion.
func (e *UserError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  Location: %s", e.Context)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	return b.String()
}

// NewUserError creates a UserError.
func NewUserError(code, message string) *UserError {
	return &UserError{Code: code, Message: message}
}

// WithContext returns a copy with context set.
func (e *UserError) WithContext(ctx string) *UserError {
	c := *e
	c.Context = ctx
	return &c
}

// WithSuggestion returns a copy with suggestion set.
func (e *UserError) WithSuggestion(suggestion string) *UserError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// WithUnderlying returns a copy wrapping err.
func (e *UserError) WithUnderlying(err error) *UserError {
	c := *e
	c.Underlying = err
	return &c
}

// GetUserError extracts a UserError from an error chain.
func GetUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

// NewConfigNotFoundError reports an explicitly requested file that does not exist.
func NewConfigNotFoundError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigNotFound,
		Message:    fmt.Sprintf("configuration file not found: %s", path),
		Context:    path,
		Suggestion: "Check the --config path, or omit it to use the defaults.",
	}
}

// NewInvalidValueError reports a configuration key with a bad value.
func NewInvalidValueError(key, message, suggestion string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigInvalid,
		Message:    fmt.Sprintf("invalid value for '%s': %s", key, message),
		Context:    key,
		Suggestion: suggestion,
	}
}

// NewInvalidPackageError reports a malformed owner/repo argument.
func NewInvalidPackageError(ref string, err error) *UserError {
	return &UserError{
		Code:       ErrCodeInvalidPackage,
		Message:    fmt.Sprintf("invalid package reference '%s'", ref),
		Suggestion: "Use the GitHub form owner/repo, for example koreader/statistics.koplugin.",
		Underlying: err,
	}
}

// NewYAMLParseError translates yaml.v3 errors into a readable message.
func NewYAMLParseError(path string, err error) *UserError {
	errStr := err.Error()
	var message, suggestion string

	switch {
	case strings.Contains(errStr, "not found in type"):
		message = "unknown configuration key"
		suggestion = "Remove the key or check its spelling. Valid top-level keys: install_root, github, patch_timeout, concurrency, temp_dir, log."
	case strings.Contains(errStr, "cannot unmarshal !!seq into"):
		message = "expected a value but found a list"
		suggestion = "Use 'key: value' format instead of '- item' list format."
	case strings.Contains(errStr, "cannot unmarshal !!str into"):
		message = "unexpected string value"
		suggestion = "Numbers and booleans must not be quoted, for example 'concurrency: 4'."
	case strings.Contains(errStr, "mapping values are not allowed"):
		message = "invalid YAML structure"
		suggestion = "Check for missing colons after keys, or incorrect indentation."
	default:
		message = "invalid YAML syntax"
		suggestion = "YAML is sensitive to indentation. Use 2 spaces (not tabs) for each level."
	}

	context := path
	if _, after, ok := strings.Cut(errStr, "line "); ok {
		line, _, _ := strings.Cut(after, ":")
		context = fmt.Sprintf("%s (line %s)", path, line)
	}

	return &UserError{
		Code:       ErrCodeConfigParse,
		Message:    message,
		Context:    context,
		Suggestion: suggestion,
		Underlying: err,
	}
}
