package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvInstallRoot = "KOSTORE_INSTALL_ROOT"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvLogLevel    = "KOSTORE_LOG_LEVEL"
)

// Loader reads configuration files and applies environment overrides.
type Loader struct {
	getenv func(string) string
}

// NewLoader creates a Loader that reads the process environment.
func NewLoader() *Loader {
	return &Loader{getenv: os.Getenv}
}

// NewLoaderWithEnv creates a Loader with a custom environment lookup.
func NewLoaderWithEnv(getenv func(string) string) *Loader {
	return &Loader{getenv: getenv}
}

// Load reads path, or the first config found in the search path when path
// is empty. A missing file in the search path yields the defaults; a
// missing explicit path is an error.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = l.discover()
	} else if _, err := os.Stat(path); err != nil {
		return nil, NewConfigNotFoundError(path).WithUnderlying(err)
	}

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		ue := GetUserError(err)
		if ue != nil && cfg.Source != "" && ue.Context != "" {
			return nil, ue.WithContext(fmt.Sprintf("%s: %s", cfg.Source, ue.Context))
		}
		return nil, err
	}
	return cfg, nil
}

// SearchPaths lists candidate config files in lookup order.
func (l *Loader) SearchPaths() []string {
	dir := l.getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home := l.getenv("HOME")
		if home == "" {
			return nil
		}
		dir = filepath.Join(home, ".config")
	}
	base := filepath.Join(dir, "kostore")
	return []string{
		filepath.Join(base, "kostore.yaml"),
		filepath.Join(base, "kostore.yml"),
		filepath.Join(base, "kostore.toml"),
	}
}

func (l *Loader) discover() string {
	for _, p := range l.SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func (l *Loader) applyEnv(cfg *Config) {
	if v := l.getenv(EnvInstallRoot); v != "" {
		cfg.InstallRoot = v
	}
	if v := l.getenv(EnvGitHubToken); v != "" {
		cfg.GitHub.Token = v
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewConfigNotFoundError(path).WithUnderlying(err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return NewYAMLParseError(path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return newTOMLParseError(path, err)
		}
	default:
		return &UserError{
			Code:       ErrCodeUnsupportedFormat,
			Message:    fmt.Sprintf("unsupported config format %q", filepath.Ext(path)),
			Context:    path,
			Suggestion: "Use a .yaml, .yml or .toml file.",
		}
	}
	return nil
}

func newTOMLParseError(path string, err error) *UserError {
	ue := &UserError{
		Code:       ErrCodeConfigParse,
		Message:    "invalid TOML syntax",
		Context:    path,
		Suggestion: "Check for unquoted strings and duplicate keys.",
		Underlying: err,
	}

	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, _ := decodeErr.Position()
		ue.Context = fmt.Sprintf("%s (line %d)", path, row)
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		ue.Message = "unknown configuration key"
		ue.Suggestion = "Remove the key or check its spelling."
	}
	return ue
}
