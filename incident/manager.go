package incident

import (
	"fmt"
	"time"

	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

// CommitHook runs inside the manager's lock after a mutation is validated
// but before it is committed. A non-nil error aborts the mutation with no
// state change; services use it to write the audit record first.
type CommitHook func(updated model.Incident) error

// Manager exclusively owns incident state transitions. Writes use optimistic
// versioning: callers supply the version they read and conflicting writers
// get ErrIncidentVersionConflict.
type Manager struct {
	mu        sync.RWMutex
	incidents map[string]*model.Incident
}

func NewManager() *Manager {
	return &Manager{incidents: make(map[string]*model.Incident)}
}

// Open creates a new incident in the OPEN state. Missing id/timestamps are
// filled in.
func (m *Manager) Open(inc model.Incident, pre CommitHook) (model.Incident, error) {
	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = inc.CreatedAt
	inc.State = model.IncidentOpen
	inc.Version = 1

	m.mu.Lock()
	defer m.mu.Unlock()

	if pre != nil {
		if err := pre(inc); err != nil {
			return model.Incident{}, err
		}
	}
	stored := inc
	m.incidents[inc.ID] = &stored
	logger.Info("Incident opened",
		zap.String("incidentID", inc.ID),
		zap.String("severity", string(inc.Severity)),
		zap.String("openedBy", inc.OpenedBy))
	return inc, nil
}

func (m *Manager) Get(id string) (model.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return model.Incident{}, sentinel_errors.ErrIncidentNotFound
	}
	return *inc, nil
}

// List returns incidents in the given states; no states means all.
func (m *Manager) List(states ...model.IncidentState) []model.Incident {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Incident
	for _, inc := range m.incidents {
		if len(states) == 0 {
			out = append(out, *inc)
			continue
		}
		for _, st := range states {
			if inc.State == st {
				out = append(out, *inc)
				break
			}
		}
	}
	return out
}

// Transition applies one state change under compare-and-swap on the version.
// The rules: OPEN→INVESTIGATING, INVESTIGATING→RESOLVED (note required),
// RESOLVED→CLOSED, and OPEN→CLOSED only with a false-positive justification.
func (m *Manager) Transition(id string, version int, to model.IncidentState, note string, falsePositive bool, actor string, pre CommitHook) (model.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.incidents[id]
	if !ok {
		return model.Incident{}, sentinel_errors.ErrIncidentNotFound
	}
	if current.Version != version {
		return model.Incident{}, fmt.Errorf("%w: read version %d, current %d",
			sentinel_errors.ErrIncidentVersionConflict, version, current.Version)
	}
	if err := validateTransition(current.State, to, note, falsePositive); err != nil {
		return model.Incident{}, err
	}

	updated := *current
	updated.State = to
	updated.Version = current.Version + 1
	updated.UpdatedAt = time.Now().UTC()
	if note != "" {
		updated.ResolutionNote = note
	}
	if to == model.IncidentClosed && current.State == model.IncidentOpen {
		updated.FalsePositive = true
	}

	if pre != nil {
		if err := pre(updated); err != nil {
			return model.Incident{}, err
		}
	}

	*current = updated
	logger.Info("Incident transitioned",
		zap.String("incidentID", id),
		zap.String("to", string(to)),
		zap.Int("version", updated.Version),
		zap.String("actor", actor))
	return updated, nil
}

func validateTransition(from, to model.IncidentState, note string, falsePositive bool) error {
	switch {
	case from == model.IncidentOpen && to == model.IncidentInvestigating:
		return nil
	case from == model.IncidentInvestigating && to == model.IncidentResolved:
		if note == "" {
			return sentinel_errors.ErrResolutionNoteRequired
		}
		return nil
	case from == model.IncidentResolved && to == model.IncidentClosed:
		return nil
	case from == model.IncidentOpen && to == model.IncidentClosed:
		if !falsePositive || note == "" {
			return sentinel_errors.ErrJustificationRequired
		}
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", sentinel_errors.ErrInvalidTransition, from, to)
}
