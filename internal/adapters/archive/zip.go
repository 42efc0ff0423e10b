// Package archive extracts downloaded plugin archives.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extraction limits guarding against decompression bombs.
const (
	DefaultMaxFiles = 10000
	DefaultMaxBytes = 512 << 20
)

var (
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrTooLarge is returned when an archive exceeds the extraction limits.
	ErrTooLarge = errors.New("archive exceeds extraction limits")
)

// ZipExtractor unpacks ZIP archives. Directory entries are created,
// regular files are written with their stored permission bits, and
// symlink entries are skipped.
type ZipExtractor struct {
	maxFiles int
	maxBytes int64
}

// Option configures a ZipExtractor.
type Option func(*ZipExtractor)

// WithLimits overrides the file count and total size limits.
func WithLimits(maxFiles int, maxBytes int64) Option {
	return func(z *ZipExtractor) {
		z.maxFiles = maxFiles
		z.maxBytes = maxBytes
	}
}

// NewZipExtractor creates an extractor with default limits.
func NewZipExtractor(opts ...Option) *ZipExtractor {
	z := &ZipExtractor{
		maxFiles: DefaultMaxFiles,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Extract unpacks archivePath into destDir, which must exist.
func (z *ZipExtractor) Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		if r != nil {
			_ = r.Close()
		}
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	if len(r.File) > z.maxFiles {
		return fmt.Errorf("%w: %d entries (max %d)", ErrTooLarge, len(r.File), z.maxFiles)
	}

	cleanDest := filepath.Clean(destDir)
	var written int64

	for _, f := range r.File {
		target, err := safeJoin(cleanDest, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case mode&os.ModeSymlink != 0:
			continue
		default:
			n, err := z.writeFile(f, target, z.maxBytes-written)
			if err != nil {
				return err
			}
			written += n
		}
	}

	return nil
}

func (z *ZipExtractor) writeFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	// Read one byte past the budget to detect overflow without trusting headers.
	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return n, err
	}
	if n > budget {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, z.maxBytes)
	}
	return n, nil
}

// safeJoin joins an archive entry name onto dest, rejecting names that
// are absolute or climb out of dest.
func safeJoin(dest, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	target := filepath.Join(dest, filepath.FromSlash(slashed))
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}
