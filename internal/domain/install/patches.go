package install

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/kostore/internal/ports"
	"github.com/felixgeelhaar/kostore/internal/validation"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// installPatches lists, downloads and writes a patch set. Patch runs never
// create a workspace, so their cleanup has nothing to remove.
func (r *run) installPatches(ctx context.Context) error {
	pkg := r.req.Package

	r.enter(ctx, EventDownload)

	files, err := r.p.source.ListPatchFiles(ctx, pkg.Owner, pkg.Name)
	if err != nil || len(files) == 0 {
		r.log.Warn(ctx, "no patches listed", ports.Err(err))
		return sourceUnavailable(msgNoPatches, err)
	}
	r.log.Debug(ctx, "patches listed", ports.F("count", len(files)))

	r.enter(ctx, EventStage)
	r.progress(ctx, "Downloading patches...")

	dir := filepath.Join(r.req.InstallRoot, patchesDirName)
	if err := r.p.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create patches directory: %w", err)
	}
	r.target = dir

	r.enter(ctx, EventCommit)

	for _, f := range files {
		if err := validation.ValidateFileName(f.Name); err != nil {
			return fmt.Errorf("patch %q: %w", f.Name, err)
		}

		data, err := r.p.fetcher.Fetch(ctx, f.DownloadURL)
		if err != nil {
			return fmt.Errorf("download patch %s: %w", f.Name, err)
		}

		text, err := DecodeText(data)
		if err != nil {
			return fmt.Errorf("decode patch %s: %w", f.Name, err)
		}

		path := filepath.Join(dir, f.Name)
		if err := r.p.fs.WriteFile(path, text, filePerm); err != nil {
			return fmt.Errorf("write patch %s: %w", f.Name, err)
		}
		r.files = append(r.files, path)
		r.log.Debug(ctx, "patch written", ports.F("path", path), ports.F("bytes", len(text)))
	}

	r.message = fmt.Sprintf("%d patch(es) installed!", len(files))
	return nil
}

// DecodeText decodes a downloaded text file to UTF-8. A UTF-8 or UTF-16
// byte-order mark selects the encoding and is dropped; otherwise the data
// is read as UTF-8 with invalid sequences replaced by U+FFFD.
func DecodeText(data []byte) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, err
	}
	return out, nil
}
