// Package validation checks untrusted names before they reach the GitHub
// API or the filesystem: repository identities from the command line or an
// MCP client and file names taken from remote listings.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Common validation errors.
var (
	ErrEmptyInput        = errors.New("input cannot be empty")
	ErrInvalidOwner      = errors.New("invalid repository owner")
	ErrInvalidRepoName   = errors.New("invalid repository name")
	ErrInvalidFileName   = errors.New("invalid file name")
	ErrPathTraversal     = errors.New("path traversal detected")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrControlCharacters = errors.New("control characters are not allowed")
)

var (
	// ownerRegex matches GitHub user and organization logins.
	// Examples: "koreader", "joshuacant", "my-org"
	ownerRegex = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,37}[a-zA-Z0-9])?$`)

	// repoRegex matches GitHub repository names.
	// Examples: "kosync.koplugin", "KOReader.patches", "my_plugin"
	repoRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)

	controlRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateOwner validates a GitHub repository owner.
func ValidateOwner(owner string) error {
	if owner == "" {
		return ErrEmptyInput
	}
	if !ownerRegex.MatchString(owner) {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	return nil
}

// ValidateRepoName validates a GitHub repository name.
func ValidateRepoName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	if !repoRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidRepoName, name)
	}
	return nil
}

// ValidateFileName validates a name that will be joined onto a directory.
// The name must be a single path element on every platform.
func ValidateFileName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if controlRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrControlCharacters, name)
	}
	if name == "." || name == ".." || strings.Contains(name, "%2e%2e") || strings.Contains(name, "%2E%2E") {
		return fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	if strings.ContainsAny(name, `/\:`) {
		return fmt.Errorf("%w: %q must not contain path separators", ErrInvalidFileName, name)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: name too long (max 255 characters)", ErrInvalidFileName)
	}
	return nil
}

// ValidateURL validates an absolute http or https URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyInput
	}
	if controlRegex.MatchString(rawURL) {
		return fmt.Errorf("%w: %q", ErrControlCharacters, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
