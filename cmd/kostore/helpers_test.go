package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// resetFlags restores global flag state between command executions.
func resetFlags(t *testing.T) {
	t.Helper()
	cfgFile = ""
	installRoot = ""
	verbose = false
	plain = false
	installUpdate = false
	mcpHTTP = ""
	t.Setenv("KOSTORE_INSTALL_ROOT", "")
	t.Setenv("KOSTORE_LOG_LEVEL", "")
	t.Setenv("GITHUB_TOKEN", "")
}

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func pluginArchive(t *testing.T, top string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{top + "/hello.koplugin/main.lua", top + "/hello.koplugin/_meta.lua"} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("return {}"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// fakeGitHub serves the repository, archive and contents endpoints for
// owner "o" and repository "hello". Every other repository is missing.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/hello", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
	})
	mux.HandleFunc("/o/hello/archive/refs/heads/main.zip", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pluginArchive(t, "hello-main"))
	})
	mux.HandleFunc("/repos/o/hello/contents", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"name": "2-a.lua", "type": "file", "download_url": server.URL + "/raw/2-a.lua"},
		})
	})
	mux.HandleFunc("/raw/2-a.lua", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("-- a"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeTestConfig writes a YAML config pointing at server and returns its
// path and the install root.
func writeTestConfig(t *testing.T, server *httptest.Server) (string, string) {
	t.Helper()
	root := t.TempDir()
	content := fmt.Sprintf(`install_root: %s
temp_dir: %s
github:
  api_url: %s
  web_url: %s
log:
  level: error
`, root, t.TempDir(), server.URL, server.URL)

	path := filepath.Join(t.TempDir(), "kostore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, root
}
