package override

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

type Config struct {
	Window            time.Duration
	EscalateThreshold int
}

// CommitHook runs after validation and before the override is committed; a
// non-nil error aborts with no state change.
type CommitHook func(ov model.Override) error

type pairKey struct {
	principalID string
	policyID    string
}

type pairState struct {
	times     []time.Time
	escalated bool
}

// Manager records overrides of deny decisions and escalates when a
// (principal, policy) pair crosses the configured threshold within the
// rolling window. Exactly one ESCALATED alert fires per crossing.
type Manager struct {
	cfg       Config
	mu        sync.Mutex
	overrides map[string]model.Override
	pairs     map[pairKey]*pairState
}

func NewManager(cfg Config) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Manager{
		cfg:       cfg,
		overrides: make(map[string]model.Override),
		pairs:     make(map[pairKey]*pairState),
	}
}

// Record validates and stores an override. The returned alert is non-nil
// only when this override crossed the escalation threshold for its
// (principal, policy) pair.
func (m *Manager) Record(principalID, decisionID, policyID string, reason model.ReasonCode, explanation string, pre CommitHook) (model.Override, *model.Alert, error) {
	if !reason.Valid() {
		return model.Override{}, nil, fmt.Errorf("%w: %q", sentinel_errors.ErrInvalidReasonCode, reason)
	}
	if explanation == "" {
		return model.Override{}, nil, sentinel_errors.ErrExplanationRequired
	}

	now := time.Now().UTC()
	ov := model.Override{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		DecisionID:  decisionID,
		PolicyID:    policyID,
		Reason:      reason,
		Explanation: explanation,
		CreatedAt:   now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if pre != nil {
		if err := pre(ov); err != nil {
			return model.Override{}, nil, err
		}
	}
	m.overrides[ov.ID] = ov

	alert := m.trackEscalation(principalID, policyID, now)
	logger.Info("Override recorded",
		zap.String("overrideID", ov.ID),
		zap.String("principalID", principalID),
		zap.String("decisionID", decisionID),
		zap.String("reason", string(reason)))
	return ov, alert, nil
}

func (m *Manager) Get(id string) (model.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ov, ok := m.overrides[id]
	if !ok {
		return model.Override{}, sentinel_errors.ErrOverrideNotFound
	}
	return ov, nil
}

// trackEscalation keeps the rolling count for the pair. The escalated marker
// clears once the pruned count falls back below the threshold, so the next
// crossing alerts again.
func (m *Manager) trackEscalation(principalID, policyID string, now time.Time) *model.Alert {
	key := pairKey{principalID: principalID, policyID: policyID}
	st, ok := m.pairs[key]
	if !ok {
		st = &pairState{}
		m.pairs[key] = st
	}

	cutoff := now.Add(-m.cfg.Window)
	kept := st.times[:0]
	for _, ts := range st.times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	st.times = append(kept, now)

	if len(st.times) <= m.cfg.EscalateThreshold {
		st.escalated = false
		return nil
	}
	if st.escalated {
		return nil
	}
	st.escalated = true

	logger.Warn("Override escalation threshold crossed",
		zap.String("principalID", principalID),
		zap.String("policyID", policyID),
		zap.Int("count", len(st.times)))
	return &model.Alert{
		ID:       uuid.New().String(),
		Rule:     "override-escalation",
		Source:   principalID,
		Severity: model.SeverityHigh,
		Message: fmt.Sprintf("principal %s overrode policy %s %d times within %s",
			principalID, policyID, len(st.times), m.cfg.Window),
		CreatedAt: now,
	}
}
