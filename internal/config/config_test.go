package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/kostore/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	cfg, err := NewLoaderWithEnv(envMap(map[string]string{"HOME": home})).Load("")

	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, DefaultAPIURL, cfg.GitHub.APIURL)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.PatchTimeoutDuration())
	assert.Equal(t, ports.LevelInfo, cfg.LogLevel())
	assert.False(t, cfg.GitHub.PreferReleases)
}

func TestLoader_YAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "kostore.yaml", `
install_root: /mnt/onboard/.adds/koreader
github:
  token: abc
  prefer_releases: true
  patch_dir: patches
patch_timeout: 30s
concurrency: 2
log:
  level: debug
  json: true
`)
	cfg, err := NewLoaderWithEnv(envMap(nil)).Load(path)

	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "/mnt/onboard/.adds/koreader", cfg.InstallRoot)
	assert.Equal(t, "abc", cfg.GitHub.Token)
	assert.True(t, cfg.GitHub.PreferReleases)
	assert.Equal(t, "patches", cfg.GitHub.PatchDir)
	assert.Equal(t, 30*time.Second, cfg.PatchTimeoutDuration())
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, ports.LevelDebug, cfg.LogLevel())
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, DefaultWebURL, cfg.GitHub.WebURL)
}

func TestLoader_TOML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "kostore.toml", `
install_root = "/data/koreader"
concurrency = 8

[github]
use_gh_auth = true
user_agent = "kostore-test"
`)
	cfg, err := NewLoaderWithEnv(envMap(nil)).Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/data/koreader", cfg.InstallRoot)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.True(t, cfg.GitHub.UseGHAuth)
	assert.Equal(t, "kostore-test", cfg.GitHub.UserAgent)
}

func TestLoader_SearchPath(t *testing.T) {
	t.Parallel()

	xdg := t.TempDir()
	dir := filepath.Join(xdg, "kostore")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kostore.toml"), []byte(`concurrency = 3`), 0o644))

	loader := NewLoaderWithEnv(envMap(map[string]string{"XDG_CONFIG_HOME": xdg}))
	cfg, err := loader.Load("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kostore.toml"), cfg.Source)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, filepath.Join(dir, "kostore.yaml"), loader.SearchPaths()[0])
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "kostore.yaml", "install_root: /from/file\n")
	cfg, err := NewLoaderWithEnv(envMap(map[string]string{
		EnvInstallRoot: "/from/env",
		EnvGitHubToken: "envtoken",
		EnvLogLevel:    "warn",
	})).Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.InstallRoot)
	assert.Equal(t, "envtoken", cfg.GitHub.Token)
	assert.Equal(t, ports.LevelWarn, cfg.LogLevel())
}

func TestLoader_EmptyYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "kostore.yaml", "")
	cfg, err := NewLoaderWithEnv(envMap(nil)).Load(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		content  string
		wantCode string
		wantText string
	}{
		{
			name:     "unknown yaml key",
			file:     "kostore.yaml",
			content:  "install_rot: /x\n",
			wantCode: ErrCodeConfigParse,
			wantText: "unknown configuration key",
		},
		{
			name:     "bad yaml type",
			file:     "kostore.yaml",
			content:  "concurrency: many\n",
			wantCode: ErrCodeConfigParse,
		},
		{
			name:     "unknown toml key",
			file:     "kostore.toml",
			content:  "bogus = 1\n",
			wantCode: ErrCodeConfigParse,
			wantText: "unknown configuration key",
		},
		{
			name:     "broken toml",
			file:     "kostore.toml",
			content:  "install_root = \n",
			wantCode: ErrCodeConfigParse,
			wantText: "line 1",
		},
		{
			name:     "bad timeout",
			file:     "kostore.yaml",
			content:  "patch_timeout: soon\n",
			wantCode: ErrCodeConfigInvalid,
			wantText: "patch_timeout",
		},
		{
			name:     "negative concurrency",
			file:     "kostore.yaml",
			content:  "concurrency: -1\n",
			wantCode: ErrCodeConfigInvalid,
		},
		{
			name:     "bad log level",
			file:     "kostore.yaml",
			content:  "log:\n  level: loud\n",
			wantCode: ErrCodeConfigInvalid,
			wantText: "log.level",
		},
		{
			name:     "bad api url",
			file:     "kostore.yaml",
			content:  "github:\n  api_url: ftp://example.com\n",
			wantCode: ErrCodeConfigInvalid,
			wantText: "github.api_url",
		},
		{
			name:     "unsupported format",
			file:     "kostore.json",
			content:  "{}",
			wantCode: ErrCodeUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.file, tt.content)
			_, err := NewLoaderWithEnv(envMap(nil)).Load(path)

			require.Error(t, err)
			ue := GetUserError(err)
			require.NotNil(t, ue)
			assert.Equal(t, tt.wantCode, ue.Code)
			assert.NotEmpty(t, ue.Suggestion)
			if tt.wantText != "" {
				assert.Contains(t, ue.Format(), tt.wantText)
			}
		})
	}
}

func TestLoader_MissingExplicitPath(t *testing.T) {
	t.Parallel()

	_, err := NewLoaderWithEnv(envMap(nil)).Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, NewUserError(ErrCodeConfigNotFound, "")))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConfig_Validate_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(home, ".config", "koreader"), cfg.InstallRoot)
}

func TestConfig_Validate_EmptyRoot(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.InstallRoot = ""
	err := cfg.Validate()

	require.Error(t, err)
	assert.Equal(t, ErrCodeInstallRoot, GetUserError(err).Code)
}
