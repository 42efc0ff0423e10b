// Package config loads kostore settings from YAML or TOML files and the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/kostore/internal/ports"
	"github.com/felixgeelhaar/kostore/internal/validation"
)

// Defaults.
const (
	DefaultInstallRoot  = "~/.config/koreader"
	DefaultAPIURL       = "https://api.github.com"
	DefaultWebURL       = "https://github.com"
	DefaultUserAgent    = "kostore"
	DefaultPatchTimeout = "10s"
	DefaultConcurrency  = 4
)

// Config is the resolved kostore configuration.
type Config struct {
	InstallRoot  string       `yaml:"install_root" toml:"install_root"`
	GitHub       GitHubConfig `yaml:"github" toml:"github"`
	PatchTimeout string       `yaml:"patch_timeout" toml:"patch_timeout"`
	Concurrency  int          `yaml:"concurrency" toml:"concurrency"`
	TempDir      string       `yaml:"temp_dir" toml:"temp_dir"`
	Log          LogConfig    `yaml:"log" toml:"log"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-" toml:"-"`

	timeout time.Duration
	level   ports.Level
}

// GitHubConfig configures the archive source.
type GitHubConfig struct {
	APIURL         string `yaml:"api_url" toml:"api_url"`
	WebURL         string `yaml:"web_url" toml:"web_url"`
	Token          string `yaml:"token" toml:"token"`
	UseGHAuth      bool   `yaml:"use_gh_auth" toml:"use_gh_auth"`
	UserAgent      string `yaml:"user_agent" toml:"user_agent"`
	PreferReleases bool   `yaml:"prefer_releases" toml:"prefer_releases"`
	PatchDir       string `yaml:"patch_dir" toml:"patch_dir"`
}

// LogConfig configures the console logger.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InstallRoot: DefaultInstallRoot,
		GitHub: GitHubConfig{
			APIURL:    DefaultAPIURL,
			WebURL:    DefaultWebURL,
			UserAgent: DefaultUserAgent,
		},
		PatchTimeout: DefaultPatchTimeout,
		Concurrency:  DefaultConcurrency,
		Log:          LogConfig{Level: "info"},
		timeout:      10 * time.Second,
		level:        ports.LevelInfo,
	}
}

// PatchTimeoutDuration returns the parsed patch_timeout.
func (c *Config) PatchTimeoutDuration() time.Duration {
	return c.timeout
}

// LogLevel returns the parsed log.level.
func (c *Config) LogLevel() ports.Level {
	return c.level
}

// Validate checks every value and resolves derived fields. Paths
// starting with "~" are expanded.
func (c *Config) Validate() error {
	if c.InstallRoot == "" {
		return &UserError{
			Code:       ErrCodeInstallRoot,
			Message:    "install root is empty",
			Context:    "install_root",
			Suggestion: "Set install_root in the config file, KOSTORE_INSTALL_ROOT, or pass --install-root.",
		}
	}
	c.InstallRoot = ports.ExpandPath(c.InstallRoot)
	c.TempDir = ports.ExpandPath(c.TempDir)

	if c.PatchTimeout == "" {
		c.PatchTimeout = DefaultPatchTimeout
	}
	timeout, err := time.ParseDuration(c.PatchTimeout)
	if err != nil || timeout <= 0 {
		return NewInvalidValueError("patch_timeout", fmt.Sprintf("%q is not a positive duration", c.PatchTimeout),
			"Use a Go duration such as 10s or 1m30s.")
	}
	c.timeout = timeout

	if c.Concurrency < 0 {
		return NewInvalidValueError("concurrency", fmt.Sprintf("%d is negative", c.Concurrency),
			"Use a positive number, or 0 for the default.")
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	level, err := ports.ParseLevel(c.Log.Level)
	if err != nil {
		return NewInvalidValueError("log.level", err.Error(), "Use one of debug, info, warn, error.")
	}
	c.level = level

	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = DefaultAPIURL
	}
	if c.GitHub.WebURL == "" {
		c.GitHub.WebURL = DefaultWebURL
	}
	if c.GitHub.UserAgent == "" {
		c.GitHub.UserAgent = DefaultUserAgent
	}
	urls := []struct{ key, value string }{
		{"github.api_url", c.GitHub.APIURL},
		{"github.web_url", c.GitHub.WebURL},
	}
	for _, u := range urls {
		if err := validation.ValidateURL(u.value); err != nil {
			return NewInvalidValueError(u.key, err.Error(), "Use an https:// URL.").WithUnderlying(err)
		}
	}

	return nil
}
