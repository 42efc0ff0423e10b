package install

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of runs a Runner executes at once.
const DefaultConcurrency = 4

// Runner executes many requests with bounded concurrency. Runs are
// independent; one failing does not stop the others.
type Runner struct {
	pipeline *Pipeline
	limit    int
}

// NewRunner creates a runner. A limit below one uses DefaultConcurrency.
func NewRunner(p *Pipeline, limit int) *Runner {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &Runner{pipeline: p, limit: limit}
}

// StartAll schedules every request and returns one task per request, in
// order. Tasks beyond the concurrency limit start as earlier ones finish.
func (r *Runner) StartAll(ctx context.Context, reqs []Request) []*Task {
	tasks := make([]*Task, len(reqs))
	for i, req := range reqs {
		tasks[i] = NewTask(req)
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(r.limit)
		for _, t := range tasks {
			g.Go(func() error {
				t.Run(ctx, r.pipeline)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return tasks
}

// RunAll runs every request and returns the outcomes in request order.
// onProgress, if non-nil, receives each progress message with the index
// of the request that produced it; it may be called concurrently.
func (r *Runner) RunAll(ctx context.Context, reqs []Request, onProgress func(i int, msg string)) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(r.limit)
	for i, req := range reqs {
		g.Go(func() error {
			var sink Sink
			if onProgress != nil {
				sink = SinkFunc(func(msg string) { onProgress(i, msg) })
			}
			outcomes[i] = r.pipeline.Run(ctx, req, sink)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
