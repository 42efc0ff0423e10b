// Package tui provides the terminal progress view for install runs.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/kostore/internal/domain/install"
)

// RunInstallProgress shows live progress for tasks until all of them finish
// or the user hides the view. Hiding the view does not stop the runs: the
// remaining tasks are awaited so each one still cleans up. Outcomes are
// returned in task order.
func RunInstallProgress(ctx context.Context, tasks []*install.Task, opts ...tea.ProgramOption) ([]install.Outcome, error) {
	model := newInstallProgressModel(tasks)

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	finalModel, err := tea.NewProgram(model, opts...).Run()

	outcomes := collect(tasks)
	if err != nil {
		return outcomes, fmt.Errorf("progress view failed: %w", err)
	}
	if _, ok := finalModel.(installProgressModel); !ok {
		return outcomes, fmt.Errorf("unexpected model type")
	}
	return outcomes, nil
}

func collect(tasks []*install.Task) []install.Outcome {
	outcomes := make([]install.Outcome, len(tasks))
	for i, t := range tasks {
		outcomes[i], _ = t.Wait(context.Background())
	}
	return outcomes
}
