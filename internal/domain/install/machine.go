package install

import (
	"github.com/felixgeelhaar/statekit"
)

// State is a pipeline state.
type State string

// Pipeline states. A run moves forward through them and never revisits one.
const (
	StateStart       State = stateStart
	StateDownloading State = stateDownloading
	StateExtracting  State = stateExtracting
	StateLocating    State = stateLocating
	StateStaging     State = stateStaging
	StateCommitting  State = stateCommitting
	StateCleaningUp  State = stateCleaningUp
	StateSucceeded   State = stateSucceeded
	StateFailed      State = stateFailed
)

const (
	stateStart       = "start"
	stateDownloading = "downloading"
	stateExtracting  = "extracting"
	stateLocating    = "locating"
	stateStaging     = "staging"
	stateCommitting  = "committing"
	stateCleaningUp  = "cleaning_up"
	stateSucceeded   = "succeeded"
	stateFailed      = "failed"
)

// Event types for the pipeline state machine.
const (
	EventDownload = "DOWNLOAD"
	EventExtract  = "EXTRACT"
	EventLocate   = "LOCATE"
	EventStage    = "STAGE"
	EventCommit   = "COMMIT"
	EventCleanup  = "CLEANUP"
	EventSucceed  = "SUCCEED"
	EventFail     = "FAIL"
)

// IsTerminal reports whether s ends a run.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// machineContext is the statekit context of one run.
type machineContext struct {
	RunID string
}

// runMachine drives a run through the pipeline states and records the
// states it visits.
type runMachine struct {
	interp  *statekit.Interpreter[machineContext]
	visited []State
}

// buildRunMachine constructs the pipeline state machine. Every working
// state can fail over to cleaning_up, and cleaning_up is the only way to
// a terminal state.
func buildRunMachine(runID string) (*runMachine, error) {
	machine, err := statekit.NewMachine[machineContext]("kostore-install").
		WithInitial(stateStart).
		WithContext(machineContext{RunID: runID}).
		State(stateStart).
		On(EventDownload).Target(stateDownloading).
		On(EventFail).Target(stateCleaningUp).Done().
		State(stateDownloading).
		On(EventExtract).Target(stateExtracting).
		On(EventStage).Target(stateStaging).
		On(EventFail).Target(stateCleaningUp).Done().
		State(stateExtracting).
		On(EventLocate).Target(stateLocating).
		On(EventFail).Target(stateCleaningUp).Done().
		State(stateLocating).
		On(EventStage).Target(stateStaging).
		On(EventFail).Target(stateCleaningUp).Done().
		State(stateStaging).
		On(EventCommit).Target(stateCommitting).
		On(EventFail).Target(stateCleaningUp).Done().
		State(stateCommitting).
		On(EventCleanup).Target(stateCleaningUp).
		On(EventFail).Target(stateCleaningUp).Done().
		State(stateCleaningUp).
		On(EventSucceed).Target(stateSucceeded).
		On(EventFail).Target(stateFailed).Done().
		// Terminal states accept no events.
		State(stateSucceeded).Done().
		State(stateFailed).Done().
		Build()
	if err != nil {
		return nil, err
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()

	return &runMachine{
		interp:  interp,
		visited: []State{StateStart},
	}, nil
}

// send delivers event and returns the resulting state.
func (m *runMachine) send(event string) State {
	m.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	s := m.current()
	if m.visited[len(m.visited)-1] != s {
		m.visited = append(m.visited, s)
	}
	return s
}

func (m *runMachine) current() State {
	return State(m.interp.State().Value)
}

func (m *runMachine) history() []State {
	out := make([]State, len(m.visited))
	copy(out, m.visited)
	return out
}

func (m *runMachine) stop() {
	m.interp.Stop()
}
