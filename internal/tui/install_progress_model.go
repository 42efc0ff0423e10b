package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/kostore/internal/domain/install"
	"github.com/felixgeelhaar/kostore/internal/tui/components"
	"github.com/felixgeelhaar/kostore/internal/tui/ui"
)

// TaskProgressMsg carries one progress message from a running task.
type TaskProgressMsg struct {
	Index   int
	Message string
}

// TaskDoneMsg is sent when a task has produced its outcome.
type TaskDoneMsg struct {
	Index   int
	Outcome install.Outcome
}

type taskRow struct {
	label   string
	status  string
	done    bool
	outcome install.Outcome
}

// installProgressModel shows one row per install task.
type installProgressModel struct {
	tasks     []*install.Task
	rows      []taskRow
	spinner   components.Spinner
	progress  components.Progress
	styles    ui.Styles
	keys      ui.KeyMap
	width     int
	finished  int
	failed    int
	done      bool
	cancelled bool
}

func newInstallProgressModel(tasks []*install.Task) installProgressModel {
	rows := make([]taskRow, len(tasks))
	for i, t := range tasks {
		req := t.Request()
		rows[i] = taskRow{
			label:  fmt.Sprintf("%s (%s)", req.Package.String(), req.Kind),
			status: "Waiting...",
		}
	}
	return installProgressModel{
		tasks:    tasks,
		rows:     rows,
		spinner:  components.NewSpinner(),
		progress: components.NewProgress(len(tasks)),
		styles:   ui.DefaultStyles(),
		keys:     ui.DefaultKeyMap(),
		width:    ui.DefaultProgressBarWidth * 2,
		done:     len(tasks) == 0,
	}
}

// waitForTask blocks until the task reports progress or finishes.
func waitForTask(i int, t *install.Task) tea.Cmd {
	return func() tea.Msg {
		if msg, ok := <-t.Progress(); ok {
			return TaskProgressMsg{Index: i, Message: msg}
		}
		<-t.Done()
		outcome, _ := t.Outcome()
		return TaskDoneMsg{Index: i, Outcome: outcome}
	}
}

// Init starts the spinner and one listener per task.
func (m installProgressModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	cmds := []tea.Cmd{tea.WindowSize(), m.spinner.Tick()}
	for i, t := range m.tasks {
		cmds = append(cmds, waitForTask(i, t))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m installProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.styles = m.styles.WithWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Detach) {
			m.cancelled = true
			return m, tea.Quit
		}

	case TaskProgressMsg:
		if msg.Index < 0 || msg.Index >= len(m.rows) {
			return m, nil
		}
		m.rows[msg.Index].status = msg.Message
		return m, waitForTask(msg.Index, m.tasks[msg.Index])

	case TaskDoneMsg:
		if msg.Index < 0 || msg.Index >= len(m.rows) || m.rows[msg.Index].done {
			return m, nil
		}
		m.rows[msg.Index].done = true
		m.rows[msg.Index].outcome = msg.Outcome
		m.rows[msg.Index].status = msg.Outcome.Message
		m.finished++
		m.progress = m.progress.Increment()
		if !msg.Outcome.Success {
			m.failed++
		}
		if m.finished == len(m.rows) {
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the model.
func (m installProgressModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Installing"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(m.styles.Help.Render("Nothing to install."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.progress.View())
	b.WriteString("\n\n")

	for _, row := range m.rows {
		b.WriteString(m.rowView(row))
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString("\n")
		if m.failed == 0 {
			b.WriteString(m.styles.Success.Render("All installs completed successfully!"))
		} else {
			b.WriteString(m.styles.Error.Render(fmt.Sprintf("Completed with %d failure(s)", m.failed)))
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.keys.Detach.Help().Key + " to " + m.keys.Detach.Help().Desc))
	return b.String()
}

func (m installProgressModel) rowView(row taskRow) string {
	switch {
	case row.done && row.outcome.Success:
		return fmt.Sprintf("  %s %s %s", m.styles.Success.Render("✓"), row.label, m.styles.Help.Render(row.status))
	case row.done:
		return fmt.Sprintf("  %s %s %s", m.styles.Error.Render("✗"), row.label, m.styles.Error.Render(row.status))
	default:
		return fmt.Sprintf("  %s %s", row.label, m.spinner.SetMessage(m.styles.Info.Render(row.status)).View())
	}
}

// Outcomes returns the outcome of each finished task, in task order.
func (m installProgressModel) Outcomes() []install.Outcome {
	out := make([]install.Outcome, len(m.rows))
	for i, row := range m.rows {
		out[i] = row.outcome
	}
	return out
}
