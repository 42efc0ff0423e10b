package install

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/kostore/internal/ports"
)

// installPlugin downloads, extracts, locates, stages and commits a plugin bundle.
func (r *run) installPlugin(ctx context.Context) error {
	pkg := r.req.Package

	r.enter(ctx, EventDownload)
	r.progress(ctx, fmt.Sprintf("Downloading %s...", pkg.Name))

	data, err := r.p.source.FetchArchive(ctx, pkg.Owner, pkg.Name)
	if err != nil || len(data) == 0 {
		r.log.Warn(ctx, "archive unavailable", ports.Err(err), ports.F("bytes", len(data)))
		return sourceUnavailable(msgDownloadFailed, err)
	}
	r.log.Debug(ctx, "archive downloaded", ports.F("bytes", len(data)))

	r.enter(ctx, EventExtract)
	r.progress(ctx, "Extracting...")

	workspace, err := r.p.fs.MkdirTemp(r.p.tempDir, workspacePattern)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	r.workspace = workspace

	archivePath := filepath.Join(workspace, pkg.Name+".zip")
	if err := r.p.fs.WriteFile(archivePath, data, filePerm); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	content := filepath.Join(workspace, contentDirName)
	if err := r.p.fs.MkdirAll(content, dirPerm); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}
	if err := r.p.extractor.Extract(archivePath, content); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	r.enter(ctx, EventLocate)
	r.progress(ctx, "Analyzing plugin structure...")

	root, ok := Locate(content)
	if !ok {
		return structuralInvalid()
	}

	// A release-style archive keeps its files at the top level; the
	// extraction directory's name means nothing, so use the repository's.
	name := PluginName(root)
	if root == content {
		name = PluginName(pkg.Name)
	}
	r.log.Debug(ctx, "plugin root located", ports.F("root", root), ports.F("plugin", name))

	r.enter(ctx, EventStage)
	r.progress(ctx, "Installing...")

	pluginsDir := filepath.Join(r.req.InstallRoot, pluginsDirName)
	if err := r.p.fs.MkdirAll(pluginsDir, dirPerm); err != nil {
		return fmt.Errorf("create plugins directory: %w", err)
	}

	target := filepath.Join(pluginsDir, name)
	staged := filepath.Join(pluginsDir, "."+name+"."+r.id+".staging")
	r.staged = staged
	if err := r.p.fs.CopyDir(root, staged); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}

	r.enter(ctx, EventCommit)

	if r.p.fs.Exists(target) {
		if !r.req.IsUpdate {
			r.log.Info(ctx, "replacing existing installation", ports.F("target", target))
		}
		if err := r.p.fs.RemoveAll(target); err != nil {
			return fmt.Errorf("remove previous installation: %w", err)
		}
	}
	if err := r.p.fs.Rename(staged, target); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	r.staged = ""
	r.target = target

	if r.req.IsUpdate {
		r.message = fmt.Sprintf("%s updated successfully!", pkg.Name)
	} else {
		r.message = fmt.Sprintf("%s installed successfully!", pkg.Name)
	}
	return nil
}
