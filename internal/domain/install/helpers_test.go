package install

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/kostore/internal/adapters/filesystem"
	"github.com/felixgeelhaar/kostore/internal/adapters/logging"
	"github.com/felixgeelhaar/kostore/internal/ports"
	"github.com/stretchr/testify/require"
)

// buildZip returns a ZIP archive holding files; names ending in "/" become
// directory entries.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = io.WriteString(w, content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// writeTree creates files under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// readTree returns every regular file under root keyed by slash path.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// fakeSource is an in-memory ArchiveSource.
type fakeSource struct {
	mu         sync.Mutex
	archive    []byte
	archiveErr error
	patches    []PatchFile
	patchErr   error
	calls      []string
}

func (s *fakeSource) FetchArchive(_ context.Context, owner, repo string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "archive:"+owner+"/"+repo)
	return s.archive, s.archiveErr
}

func (s *fakeSource) ListPatchFiles(_ context.Context, owner, repo string) ([]PatchFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "patches:"+owner+"/"+repo)
	return s.patches, s.patchErr
}

func (s *fakeSource) setArchive(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = data
}

// fakeFetcher serves patch bodies by URL.
type fakeFetcher struct {
	bodies map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404 Not Found", url)
	}
	return []byte(body), nil
}

// zipExtractor extracts with archive/zip, refusing entries outside dest.
type zipExtractor struct{}

func (zipExtractor) Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	prefix := filepath.Clean(destDir) + string(filepath.Separator)
	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, prefix) {
			return fmt.Errorf("unsafe entry %q", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// failingExtractor always fails.
type failingExtractor struct{}

func (failingExtractor) Extract(string, string) error {
	return errors.New("zip: not a valid zip file")
}

// flakyFS wraps the real filesystem and fails RemoveAll for matching paths.
type flakyFS struct {
	ports.FileSystem
	failRemove func(path string) bool
	panicCopy  bool
	mu         sync.Mutex
	temps      []string
}

func (f *flakyFS) MkdirTemp(dir, pattern string) (string, error) {
	path, err := f.FileSystem.MkdirTemp(dir, pattern)
	if err == nil {
		f.mu.Lock()
		f.temps = append(f.temps, path)
		f.mu.Unlock()
	}
	return path, err
}

func (f *flakyFS) RemoveAll(path string) error {
	if f.failRemove != nil && f.failRemove(path) {
		return errors.New("device or resource busy")
	}
	return f.FileSystem.RemoveAll(path)
}

func (f *flakyFS) CopyDir(src, dest string) error {
	if f.panicCopy {
		panic("copy exploded")
	}
	return f.FileSystem.CopyDir(src, dest)
}

func (f *flakyFS) workspaces() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.temps...)
}

// recordingSink collects progress messages.
type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *recordingSink) Progress(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

type testEnv struct {
	source   *fakeSource
	fetcher  *fakeFetcher
	fs       *flakyFS
	logs     *bytes.Buffer
	tempDir  string
	root     string
	pipeline *Pipeline
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		source:  &fakeSource{},
		fetcher: &fakeFetcher{bodies: map[string]string{}},
		fs:      &flakyFS{FileSystem: filesystem.NewRealFileSystem()},
		logs:    &bytes.Buffer{},
		tempDir: t.TempDir(),
		root:    t.TempDir(),
	}

	deps := Deps{
		Source:    env.source,
		Fetcher:   env.fetcher,
		Extractor: zipExtractor{},
		FS:        env.fs,
		Logger: logging.NewConsoleLogger(
			logging.WithOutput(env.logs),
			logging.WithLevel(ports.LevelDebug),
			logging.WithTimestamp(false),
		),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	p, err := NewPipeline(deps, WithTempDir(env.tempDir))
	require.NoError(t, err)
	env.pipeline = p
	return env
}

func (e *testEnv) pluginRequest(repo string, update bool) Request {
	return NewRequest(Package{Owner: "koreader", Name: repo, Kind: KindPluginBundle}, e.root, update)
}

func (e *testEnv) patchRequest(repo string) Request {
	return NewRequest(Package{Owner: "sebdelsol", Name: repo, Kind: KindPatchSet}, e.root, false)
}

// leftovers lists entries remaining in the workspace parent directory.
func (e *testEnv) leftovers(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
