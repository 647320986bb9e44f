package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

// Manager routes events to one machine per user. Each user's events are
// handled single-flight behind that machine's lock while different users
// proceed concurrently.
type Manager struct {
	logg   *logger.Logger
	eng    RentalEngine
	limits Limits

	mu       sync.Mutex
	machines map[int64]*userMachine
}

type userMachine struct {
	mu      sync.Mutex
	machine *Machine
}

// ManagerParams configure the flow manager.
type ManagerParams struct {
	Logger *logger.Logger
	Engine RentalEngine
	Limits Limits
}

// NewManager builds the flow manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("rental engine required")
	}
	if params.Limits.MaxQuantity <= 0 || params.Limits.MaxDurationDays <= 0 {
		return nil, fmt.Errorf("flow limits required")
	}
	return &Manager{
		logg:     params.Logger,
		eng:      params.Engine,
		limits:   params.Limits,
		machines: make(map[int64]*userMachine),
	}, nil
}

// Handle applies one event to the user's machine and returns the output.
func (m *Manager) Handle(ctx context.Context, userID int64, evt Event) Output {
	um := m.machineFor(userID)
	um.mu.Lock()
	defer um.mu.Unlock()

	out := um.machine.Handle(ctx, evt)

	logCtx := m.logg.WithUserID(ctx, userID)
	logCtx = m.logg.WithFields(logCtx, map[string]any{
		"event":  string(evt.Kind),
		"state":  string(um.machine.CurrentState()),
		"output": string(out.Kind),
	})
	if out.Kind == OutFailure {
		m.logg.Warn(logCtx, "flow event failed")
	} else {
		m.logg.Info(logCtx, "flow event handled")
	}
	return out
}

// StateOf reports the user's current conversation state.
func (m *Manager) StateOf(userID int64) State {
	um := m.machineFor(userID)
	um.mu.Lock()
	defer um.mu.Unlock()
	return um.machine.CurrentState()
}

func (m *Manager) machineFor(userID int64) *userMachine {
	m.mu.Lock()
	defer m.mu.Unlock()
	um, ok := m.machines[userID]
	if !ok {
		um = &userMachine{machine: NewMachine(userID, m.eng, m.limits)}
		m.machines[userID] = um
	}
	return um
}
