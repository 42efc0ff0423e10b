package install

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/kostore/internal/ports"
	"github.com/google/uuid"
)

const (
	workspacePattern = "kostore_*"
	contentDirName   = "content"
	pluginsDirName   = "plugins"
	patchesDirName   = "patches"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Deps are the collaborators a Pipeline needs. All fields are required.
type Deps struct {
	Source    ArchiveSource
	Fetcher   PatchFetcher
	Extractor Extractor
	FS        ports.FileSystem
	Logger    ports.Logger
}

// Pipeline runs install requests. A Pipeline holds no per-run state and
// may serve any number of concurrent runs.
type Pipeline struct {
	source    ArchiveSource
	fetcher   PatchFetcher
	extractor Extractor
	fs        ports.FileSystem
	logger    ports.Logger
	tempDir   string
	newRunID  func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir sets the parent directory for extraction workspaces
// (default: the OS temp dir).
func WithTempDir(dir string) Option {
	return func(p *Pipeline) {
		p.tempDir = dir
	}
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(p *Pipeline) {
		p.newRunID = fn
	}
}

// NewPipeline creates a pipeline from its collaborators.
func NewPipeline(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("archive source is required")
	case deps.Fetcher == nil:
		return nil, errors.New("patch fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.FS == nil:
		return nil, errors.New("filesystem is required")
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	}

	p := &Pipeline{
		source:    deps.Source,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		fs:        deps.FS,
		logger:    deps.Logger,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one request to completion on the calling goroutine and
// returns its outcome. Progress messages go to sink, which may be nil.
// Cancelling ctx does not abort a run that has started; every run
// reaches cleanup and a terminal state.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) Outcome {
	ctx = context.WithoutCancel(ctx)
	if req.Kind == "" {
		req.Kind = req.Package.Kind
	}

	id := p.newRunID()
	r := &run{
		p:    p,
		req:  req,
		sink: sink,
		id:   id,
		log: p.logger.With(
			ports.F("run_id", id),
			ports.F("package", req.Package.String()),
			ports.F("kind", string(req.Kind)),
		),
	}
	return r.execute(ctx)
}

// run is the state of a single pipeline execution.
type run struct {
	p       *Pipeline
	req     Request
	sink    Sink
	id      string
	log     ports.Logger
	machine *runMachine

	workspace string
	staged    string

	target  string
	files   []string
	message string
}

func (r *run) execute(ctx context.Context) Outcome {
	started := time.Now()
	r.log.Info(ctx, "install run started", ports.F("update", r.req.IsUpdate))

	m, err := buildRunMachine(r.id)
	if err != nil {
		failure := unexpected(fmt.Errorf("build state machine: %w", err))
		r.log.Error(ctx, "install run aborted", ports.Err(err))
		return Outcome{Message: failure.Message, Err: failure, RunID: r.id}
	}
	r.machine = m
	defer m.stop()

	failure := r.work(ctx)
	r.cleanup(ctx, failure != nil)

	out := Outcome{RunID: r.id}
	elapsed := ports.F("duration", time.Since(started).Round(time.Millisecond).String())

	if failure != nil {
		r.machine.send(EventFail)
		out.Message = failure.Message
		out.Err = failure
		r.log.Warn(ctx, "install run failed",
			ports.F("failure", failure.Kind.String()),
			ports.F("message", failure.Message),
			ports.Err(failure.Err),
			elapsed,
		)
	} else {
		r.machine.send(EventSucceed)
		out.Success = true
		out.Message = r.message
		out.Target = r.target
		out.Files = r.files
		r.log.Info(ctx, "install run succeeded", ports.F("target", r.target), elapsed)
	}

	out.States = r.machine.history()
	return out
}

// work performs the kind-specific steps. Panics are converted into an
// unexpected failure so cleanup always runs.
func (r *run) work(ctx context.Context) (failure *Error) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error(ctx, "install run panicked", ports.F("panic", fmt.Sprint(v)))
			failure = panicError(v)
		}
	}()

	if err := r.req.Validate(); err != nil {
		return unexpected(err)
	}

	var err error
	switch r.req.Kind {
	case KindPluginBundle:
		err = r.installPlugin(ctx)
	case KindPatchSet:
		err = r.installPatches(ctx)
	}
	if err != nil {
		return asFailure(err)
	}
	return nil
}

// cleanup enters cleaning_up and removes the workspace and any staged
// copy left behind. Removal failures are logged and otherwise ignored.
func (r *run) cleanup(ctx context.Context, failed bool) {
	if failed {
		r.enter(ctx, EventFail)
	} else {
		r.enter(ctx, EventCleanup)
	}

	for _, path := range []string{r.staged, r.workspace} {
		if path == "" {
			continue
		}
		r.removeTemp(ctx, path)
	}
	r.staged = ""
	r.workspace = ""
}

func (r *run) removeTemp(ctx context.Context, path string) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Warn(ctx, "failed to remove temporary directory", ports.F("path", path), ports.F("panic", fmt.Sprint(v)))
		}
	}()

	if err := r.p.fs.RemoveAll(path); err != nil {
		r.log.Warn(ctx, "failed to remove temporary directory", ports.F("path", path), ports.Err(err))
		return
	}
	r.log.Debug(ctx, "removed temporary directory", ports.F("path", path))
}

func (r *run) enter(ctx context.Context, event string) {
	from := r.machine.current()
	to := r.machine.send(event)
	r.log.Debug(ctx, "state transition", ports.F("from", string(from)), ports.F("to", string(to)))
}

func (r *run) progress(ctx context.Context, msg string) {
	r.log.Debug(ctx, "progress", ports.F("message", msg))
	if r.sink != nil {
		r.sink.Progress(msg)
	}
}
