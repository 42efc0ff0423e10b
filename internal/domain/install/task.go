package install

import (
	"context"
	"sync"
)

// progressBuffer exceeds the number of progress messages a run emits, so
// a run never blocks on a consumer that only waits for the outcome.
const progressBuffer = 16

// Task is a run executing on its own goroutine. Progress messages arrive
// on Progress, which is closed before the outcome is published. Messages
// are buffered, so the outcome can be available while some are still
// unread; drain Progress until it closes to see them all.
type Task struct {
	req      Request
	progress chan string
	done     chan struct{}
	start    sync.Once
	outcome  Outcome
}

// NewTask creates a task for req that stays pending until Run is called.
func NewTask(req Request) *Task {
	return &Task{
		req:      req,
		progress: make(chan string, progressBuffer),
		done:     make(chan struct{}),
	}
}

// Start runs req on a new goroutine and returns immediately.
func Start(ctx context.Context, p *Pipeline, req Request) *Task {
	t := NewTask(req)
	go t.Run(ctx, p)
	return t
}

// Run executes the pipeline once on the calling goroutine; later calls
// are no-ops.
func (t *Task) Run(ctx context.Context, p *Pipeline) {
	t.start.Do(func() {
		out := p.Run(ctx, t.req, SinkFunc(func(msg string) {
			t.progress <- msg
		}))
		close(t.progress)
		t.outcome = out
		close(t.done)
	})
}

// Request returns the request the task runs.
func (t *Task) Request() Request {
	return t.req
}

// Progress returns the progress stream.
func (t *Task) Progress() <-chan string {
	return t.progress
}

// Done is closed once the outcome is available.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the outcome and whether the run has finished.
func (t *Task) Outcome() (Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the run finishes or ctx is done. Abandoning the wait
// does not stop the run.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
