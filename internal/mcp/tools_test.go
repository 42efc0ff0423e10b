package mcp

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/kostore/internal/adapters/logging"
	"github.com/felixgeelhaar/kostore/internal/app"
	"github.com/felixgeelhaar/kostore/internal/config"
	"github.com/felixgeelhaar/kostore/internal/domain/install"
)

type fakeSource struct {
	archive []byte
	patches []install.PatchFile
	err     error
}

func (s *fakeSource) FetchArchive(_ context.Context, _, _ string) ([]byte, error) {
	return s.archive, s.err
}

func (s *fakeSource) ListPatchFiles(_ context.Context, _, _ string) ([]install.PatchFile, error) {
	return s.patches, s.err
}

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if body, ok := f[url]; ok {
		return []byte(body), nil
	}
	return nil, errors.New("404 Not Found")
}

func pluginZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"hello-main/hello.koplugin/main.lua", "hello-main/hello.koplugin/_meta.lua"} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("return {}"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T, source *fakeSource, fetcher fakeFetcher) (*mcp.Server, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.InstallRoot = t.TempDir()
	cfg.TempDir = t.TempDir()
	require.NoError(t, cfg.Validate())

	k, err := app.New(context.Background(), cfg,
		app.WithLogger(logging.NewNopLogger()),
		app.WithSource(source),
		app.WithFetcher(fetcher),
	)
	require.NoError(t, err)

	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	RegisterAll(srv, k, VersionInfo{Version: "1.2.3", Commit: "abc"})
	return srv, cfg
}

func executeTool(t *testing.T, srv *mcp.Server, toolName string, input interface{}) (interface{}, error) {
	t.Helper()
	tool, ok := srv.GetTool(toolName)
	require.True(t, ok, "tool %q should be registered", toolName)

	data, err := json.Marshal(input)
	require.NoError(t, err)

	return tool.Execute(context.Background(), data)
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeSource{}, nil)

	names := make(map[string]string)
	for _, tool := range srv.Tools() {
		names[tool.Name] = tool.Description
	}

	assert.Len(t, names, 4)
	assert.Contains(t, names["kostore_install_plugin"], "REQUIRES confirm=true")
	assert.Contains(t, names["kostore_install_patches"], "patches/")
	assert.Contains(t, names, "kostore_locate")
	assert.Contains(t, names, "kostore_status")
}

func TestInstallPluginTool(t *testing.T) {
	t.Parallel()

	srv, cfg := newTestServer(t, &fakeSource{archive: pluginZip(t)}, nil)

	result, err := executeTool(t, srv, "kostore_install_plugin", InstallPluginInput{
		Repositories: []string{"someone/hello"},
		Confirm:      true,
	})
	require.NoError(t, err)

	output, ok := result.(*InstallOutput)
	require.True(t, ok, "result should be *InstallOutput")
	assert.True(t, output.Confirmed)
	assert.Equal(t, 1, output.Succeeded)
	require.Len(t, output.Results, 1)

	res := output.Results[0]
	assert.Equal(t, "someone/hello", res.Repository)
	assert.Equal(t, "hello installed successfully!", res.Message)
	assert.Equal(t, filepath.Join(cfg.InstallRoot, "plugins", "hello.koplugin"), res.Target)
	assert.Contains(t, res.Progress, "Extracting...")
	assert.DirExists(t, res.Target)
}

func TestInstallPluginTool_RequiresConfirm(t *testing.T) {
	t.Parallel()

	srv, cfg := newTestServer(t, &fakeSource{archive: pluginZip(t)}, nil)

	result, err := executeTool(t, srv, "kostore_install_plugin", InstallPluginInput{
		Repositories: []string{"someone/hello"},
	})
	require.NoError(t, err)

	output := result.(*InstallOutput)
	assert.False(t, output.Confirmed)
	assert.Empty(t, output.Results)
	assert.NoDirExists(t, filepath.Join(cfg.InstallRoot, "plugins"))
}

func TestInstallPluginTool_Failure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeSource{err: errors.New("offline")}, nil)

	result, err := executeTool(t, srv, "kostore_install_plugin", InstallPluginInput{
		Repositories: []string{"someone/hello"},
		Confirm:      true,
	})
	require.NoError(t, err)

	output := result.(*InstallOutput)
	assert.Equal(t, 1, output.Failed)
	assert.Equal(t, "Failed to download repository", output.Results[0].Message)
	assert.Equal(t, "source_unavailable", output.Results[0].ErrorKind)
}

func TestInstallPluginTool_InvalidRepository(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeSource{}, nil)

	_, err := executeTool(t, srv, "kostore_install_plugin", InstallPluginInput{
		Repositories: []string{"../../etc"},
		Confirm:      true,
	})
	assert.Error(t, err)
}

func TestInstallPatchesTool(t *testing.T) {
	t.Parallel()

	source := &fakeSource{patches: []install.PatchFile{
		{Name: "2-a.lua", DownloadURL: "https://raw.example.com/2-a.lua"},
		{Name: "2-b.lua", DownloadURL: "https://raw.example.com/2-b.lua"},
	}}
	fetcher := fakeFetcher{
		"https://raw.example.com/2-a.lua": "-- a",
		"https://raw.example.com/2-b.lua": "-- b",
	}
	srv, cfg := newTestServer(t, source, fetcher)

	result, err := executeTool(t, srv, "kostore_install_patches", InstallPatchesInput{
		Repositories: []string{"sebdelsol/KOReader.patches"},
		Confirm:      true,
	})
	require.NoError(t, err)

	output := result.(*InstallOutput)
	require.Equal(t, 1, output.Succeeded)
	assert.Equal(t, "2 patch(es) installed!", output.Results[0].Message)
	assert.Equal(t, []string{
		filepath.Join(cfg.InstallRoot, "patches", "2-a.lua"),
		filepath.Join(cfg.InstallRoot, "patches", "2-b.lua"),
	}, output.Results[0].Files)
	assert.FileExists(t, filepath.Join(cfg.InstallRoot, "patches", "2-b.lua"))
}

func TestLocateTool(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeSource{}, nil)

	dir := t.TempDir()
	plugin := filepath.Join(dir, "x", "reader.koplugin")
	require.NoError(t, os.MkdirAll(plugin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(plugin, "main.lua"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(plugin, "_meta.lua"), nil, 0o644))

	result, err := executeTool(t, srv, "kostore_locate", LocateInput{Path: dir})
	require.NoError(t, err)
	output := result.(*LocateOutput)
	assert.True(t, output.Found)
	assert.Equal(t, plugin, output.Root)
	assert.Equal(t, "reader.koplugin", output.Name)

	result, err = executeTool(t, srv, "kostore_locate", LocateInput{Path: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, result.(*LocateOutput).Found)

	_, err = executeTool(t, srv, "kostore_locate", LocateInput{})
	assert.Error(t, err)
}

func TestStatusTool(t *testing.T) {
	t.Parallel()

	srv, cfg := newTestServer(t, &fakeSource{}, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.InstallRoot, "plugins", "hello.koplugin"), 0o755))

	result, err := executeTool(t, srv, "kostore_status", StatusInput{})
	require.NoError(t, err)

	output := result.(*StatusOutput)
	assert.Equal(t, "1.2.3", output.Version)
	assert.Equal(t, cfg.InstallRoot, output.InstallRoot)
	assert.Equal(t, []string{"hello.koplugin"}, output.Plugins)
	assert.Empty(t, output.Patches)
}
