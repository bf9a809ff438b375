package engine

import (
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// State is the in-memory runtime state of the tour machine. When Active is
// false, TourID is empty and StepIndex is zero.
type State struct {
	Active    bool   `json:"active"`
	TourID    string `json:"tour_id,omitempty"`
	StepIndex int    `json:"step_index"`
}

// Machine is the tour state machine: Inactive or Active(tour, step).
// Transitions that do not apply are no-ops; none of them return errors.
type Machine struct {
	reg    *tour.Registry
	store  *progress.Store
	logger *zap.Logger

	state    State
	def      tour.Definition
	onChange []func(State)
}

// NewMachine returns an inactive machine over reg, recording completions
// in store.
func NewMachine(reg *tour.Registry, store *progress.Store, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{reg: reg, store: store, logger: logger}
}

// OnChange registers fn to run after every transition that changed state.
// Restarting the active tour counts as a change.
func (m *Machine) OnChange(fn func(State)) {
	m.onChange = append(m.onChange, fn)
}

func (m *Machine) set(s State) {
	m.state = s
	for _, fn := range m.onChange {
		fn(s)
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Active reports whether a tour is running.
func (m *Machine) Active() bool { return m.state.Active }

// Tour returns the active tour definition.
func (m *Machine) Tour() (tour.Definition, bool) {
	if !m.state.Active {
		return tour.Definition{}, false
	}
	return m.def, true
}

// Step returns the active step.
func (m *Machine) Step() (tour.Step, bool) {
	if !m.state.Active {
		return tour.Step{}, false
	}
	return m.def.Step(m.state.StepIndex)
}

// Start enters Active(tourID, 0). Unknown ids are logged and ignored.
// Starting always resets to the first step, even for completed tours or
// the tour already running.
func (m *Machine) Start(tourID string) bool {
	def, ok := m.reg.Get(tourID)
	if !ok {
		metrics.UnknownTour.Inc()
		m.logger.Warn("tour not found", zap.String("tour", tourID))
		return false
	}
	m.def = def
	m.set(State{Active: true, TourID: tourID, StepIndex: 0})
	return true
}

// Next advances one step. It is a no-op on the last step.
func (m *Machine) Next() bool {
	if !m.state.Active || m.state.StepIndex >= m.def.Len()-1 {
		return false
	}
	s := m.state
	s.StepIndex++
	m.set(s)
	return true
}

// Prev goes back one step. It is a no-op on the first step.
func (m *Machine) Prev() bool {
	if !m.state.Active || m.state.StepIndex == 0 {
		return false
	}
	s := m.state
	s.StepIndex--
	m.set(s)
	return true
}

// Skip abandons the active tour without recording completion.
func (m *Machine) Skip() bool {
	if !m.state.Active {
		return false
	}
	m.logger.Debug("tour skipped", zap.String("tour", m.state.TourID), zap.Int("step", m.state.StepIndex))
	m.deactivate()
	return true
}

// Complete records the active tour as completed and deactivates.
func (m *Machine) Complete() bool {
	if !m.state.Active {
		return false
	}
	id := m.state.TourID
	if m.store != nil {
		m.store.CompleteTour(id)
	}
	m.logger.Debug("tour completed", zap.String("tour", id))
	m.deactivate()
	return true
}

func (m *Machine) deactivate() {
	m.def = tour.Definition{}
	m.set(State{})
}

// IsLast reports whether the active step is the final one.
func (m *Machine) IsLast() bool {
	return m.state.Active && m.state.StepIndex == m.def.Len()-1
}
