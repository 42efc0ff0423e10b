package install

import "context"

// ArchiveSource supplies package archives and patch listings.
// FetchArchive may return empty data without an error when the source has
// nothing to offer; the pipeline treats both cases as unavailable.
type ArchiveSource interface {
	FetchArchive(ctx context.Context, owner, repo string) ([]byte, error)
	ListPatchFiles(ctx context.Context, owner, repo string) ([]PatchFile, error)
}

// PatchFetcher downloads a single patch file.
type PatchFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor unpacks a ZIP archive into a directory.
type Extractor interface {
	Extract(archivePath, destDir string) error
}

// Sink receives progress messages from a run.
type Sink interface {
	Progress(msg string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg string)

// Progress calls f(msg).
func (f SinkFunc) Progress(msg string) {
	f(msg)
}
