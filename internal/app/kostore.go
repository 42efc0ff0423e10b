// Package app wires configuration, adapters and the install pipeline
// together for the CLI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/kostore/internal/adapters/archive"
	"github.com/felixgeelhaar/kostore/internal/adapters/command"
	"github.com/felixgeelhaar/kostore/internal/adapters/download"
	"github.com/felixgeelhaar/kostore/internal/adapters/filesystem"
	"github.com/felixgeelhaar/kostore/internal/adapters/github"
	"github.com/felixgeelhaar/kostore/internal/adapters/logging"
	"github.com/felixgeelhaar/kostore/internal/config"
	"github.com/felixgeelhaar/kostore/internal/domain/install"
	"github.com/felixgeelhaar/kostore/internal/ports"
)

const ghTimeout = 5 * time.Second

// ErrNotPluginDir is returned by Locate when no plugin root exists under a directory.
var ErrNotPluginDir = errors.New("no plugin root found")

// Kostore is the application entry point shared by all front ends.
type Kostore struct {
	cfg      *config.Config
	log      ports.Logger
	pipeline *install.Pipeline
	runner   *install.Runner
}

// Option overrides a dependency of Kostore.
type Option func(*options)

type options struct {
	logger  ports.Logger
	source  install.ArchiveSource
	fetcher install.PatchFetcher
	cmd     ports.CommandRunner
	runIDs  func() string
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSource replaces the GitHub archive source.
func WithSource(s install.ArchiveSource) Option {
	return func(o *options) { o.source = s }
}

// WithFetcher replaces the HTTP patch fetcher.
func WithFetcher(f install.PatchFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithCommandRunner sets the runner used to query the gh CLI.
func WithCommandRunner(r ports.CommandRunner) Option {
	return func(o *options) { o.cmd = r }
}

// WithRunIDs sets the run identifier generator.
func WithRunIDs(fn func() string) Option {
	return func(o *options) { o.runIDs = fn }
}

// NewLogger builds the console logger described by cfg. Verbose forces debug.
func NewLogger(cfg *config.Config, out io.Writer, verbose bool) ports.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(out),
		logging.WithLevel(level),
		logging.WithJSONFormat(cfg.Log.JSON),
	)
}

// New builds a Kostore from a validated configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Kostore, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg, os.Stderr, false)
	}

	if o.source == nil {
		token := cfg.GitHub.Token
		if token == "" && cfg.GitHub.UseGHAuth {
			runner := o.cmd
			if runner == nil {
				runner = command.NewRealRunner(ghTimeout)
			}
			t, err := github.TokenFromGH(ctx, runner)
			if err != nil {
				o.logger.Warn(ctx, "gh auth token unavailable, continuing unauthenticated", ports.Err(err))
			}
			token = t
		}
		o.source = github.NewClient(
			github.WithBaseURLs(cfg.GitHub.APIURL, cfg.GitHub.WebURL),
			github.WithToken(token),
			github.WithUserAgent(cfg.GitHub.UserAgent),
			github.WithPatchDir(cfg.GitHub.PatchDir),
			github.WithPreferReleases(cfg.GitHub.PreferReleases),
		)
	}
	if o.fetcher == nil {
		o.fetcher = download.NewFetcher(cfg.PatchTimeoutDuration(), download.WithUserAgent(cfg.GitHub.UserAgent))
	}

	pipeOpts := []install.Option{install.WithTempDir(cfg.TempDir)}
	if o.runIDs != nil {
		pipeOpts = append(pipeOpts, install.WithRunIDs(o.runIDs))
	}

	pipeline, err := install.NewPipeline(install.Deps{
		Source:    o.source,
		Fetcher:   o.fetcher,
		Extractor: archive.NewZipExtractor(),
		FS:        filesystem.NewRealFileSystem(),
		Logger:    o.logger,
	}, pipeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build install pipeline: %w", err)
	}

	return &Kostore{
		cfg:      cfg,
		log:      o.logger,
		pipeline: pipeline,
		runner:   install.NewRunner(pipeline, cfg.Concurrency),
	}, nil
}

// Config returns the configuration in use.
func (k *Kostore) Config() *config.Config {
	return k.cfg
}

// Logger returns the application logger.
func (k *Kostore) Logger() ports.Logger {
	return k.log
}

// Requests parses owner/repo references into install requests for kind.
func (k *Kostore) Requests(refs []string, kind install.Kind, isUpdate bool) ([]install.Request, error) {
	if len(refs) == 0 {
		return nil, config.NewUserError(config.ErrCodeInvalidPackage, "no packages given").
			WithSuggestion("Pass at least one owner/repo argument.")
	}
	reqs := make([]install.Request, 0, len(refs))
	for _, ref := range refs {
		pkg, err := install.ParsePackage(ref, kind)
		if err != nil {
			return nil, config.NewInvalidPackageError(ref, err)
		}
		reqs = append(reqs, install.NewRequest(pkg, k.cfg.InstallRoot, isUpdate))
	}
	return reqs, nil
}

// Install runs one request on the calling goroutine.
func (k *Kostore) Install(ctx context.Context, req install.Request, sink install.Sink) install.Outcome {
	return k.pipeline.Run(ctx, req, sink)
}

// Start launches every request in the background, bounded by the
// configured concurrency.
func (k *Kostore) Start(ctx context.Context, reqs []install.Request) []*install.Task {
	return k.runner.StartAll(ctx, reqs)
}

// InstallAll runs every request and returns the outcomes in request order.
func (k *Kostore) InstallAll(ctx context.Context, reqs []install.Request, onProgress func(i int, msg string)) []install.Outcome {
	return k.runner.RunAll(ctx, reqs, onProgress)
}

// Locate returns the plugin root under dir and the folder name it would
// be installed as.
func Locate(dir string) (root, name string, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", "", err
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("%s: not a directory", dir)
	}
	root, ok := install.Locate(dir)
	if !ok {
		return "", "", fmt.Errorf("%w under %s", ErrNotPluginDir, dir)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return root, install.PluginName(abs), nil
}

// Inventory lists what is installed under the install root.
type Inventory struct {
	Plugins []string
	Patches []string
}

// Installed reads the plugins and patches directories. Missing
// directories are treated as empty.
func (k *Kostore) Installed() (Inventory, error) {
	var inv Inventory

	plugins, err := readNames(filepath.Join(k.cfg.InstallRoot, "plugins"), func(e os.DirEntry) bool {
		return e.IsDir() && strings.HasSuffix(e.Name(), install.PluginSuffix)
	})
	if err != nil {
		return inv, err
	}
	patches, err := readNames(filepath.Join(k.cfg.InstallRoot, "patches"), func(e os.DirEntry) bool {
		return !e.IsDir() && strings.HasSuffix(e.Name(), ".lua")
	})
	if err != nil {
		return inv, err
	}

	inv.Plugins = plugins
	inv.Patches = patches
	return inv, nil
}

func readNames(dir string, keep func(os.DirEntry) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if keep(e) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
