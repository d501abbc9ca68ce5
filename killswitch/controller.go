package killswitch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

// Target is a terminable component registered by a collaborator.
type Target struct {
	Type        model.TargetType
	ID          string
	Description string
	Sessions    []string
	// Terminate is invoked during activation. Nil targets are simply
	// marked terminated.
	Terminate func() error
}

// Registry tracks the components the kill switch may terminate.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

func targetKey(t model.TargetType, id string) string {
	return string(t) + "|" + id
}

func (r *Registry) Register(target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[targetKey(target.Type, target.ID)] = target
}

func (r *Registry) Unregister(targetType model.TargetType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, targetKey(targetType, id))
}

func (r *Registry) Lookup(targetType model.TargetType, id string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[targetKey(targetType, id)]
	return t, ok
}

// CommitHook runs after the target is resolved and before any state is
// created; a non-nil error aborts the activation entirely.
type CommitHook func(action model.KillSwitchAction) error

// Controller executes emergency terminations, idempotently: re-activating a
// target already terminating or terminated returns the existing action.
type Controller struct {
	mu       sync.Mutex
	registry *Registry
	byTarget map[string]*model.KillSwitchAction
	byID     map[string]*model.KillSwitchAction
}

func NewController(registry *Registry) *Controller {
	return &Controller{
		registry: registry,
		byTarget: make(map[string]*model.KillSwitchAction),
		byID:     make(map[string]*model.KillSwitchAction),
	}
}

// Activate terminates the target and records the action. The whole operation
// is atomic with respect to state: an unknown target changes nothing.
func (c *Controller) Activate(targetType model.TargetType, targetID, reason, actor string, pre CommitHook) (model.KillSwitchAction, error) {
	if !targetType.Valid() {
		return model.KillSwitchAction{}, fmt.Errorf("%w: %q", sentinel_errors.ErrInvalidTargetType, targetType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := targetKey(targetType, targetID)
	if existing, ok := c.byTarget[key]; ok &&
		(existing.State == model.KillSwitchTerminating || existing.State == model.KillSwitchTerminated) {
		logger.Info("Kill switch already engaged for target, returning existing action",
			zap.String("killSwitchID", existing.ID),
			zap.String("target", key))
		return *existing, nil
	}

	target, ok := c.registry.Lookup(targetType, targetID)
	if !ok {
		return model.KillSwitchAction{}, fmt.Errorf("%w: %s %s",
			sentinel_errors.ErrKillSwitchTargetNotFound, targetType, targetID)
	}

	now := time.Now().UTC()
	action := model.KillSwitchAction{
		ID:                   uuid.New().String(),
		TargetType:           targetType,
		TargetID:             targetID,
		State:                model.KillSwitchActive,
		Reason:               reason,
		ActivatedBy:          actor,
		RollbackInstructions: rollbackText(target),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if pre != nil {
		if err := pre(action); err != nil {
			return model.KillSwitchAction{}, err
		}
	}

	action.State = model.KillSwitchTerminating
	stored := action
	c.byTarget[key] = &stored
	c.byID[action.ID] = &stored

	impact := fmt.Sprintf("%s %q terminated", targetType, targetID)
	if len(target.Sessions) > 0 {
		impact += fmt.Sprintf("; %d sessions closed (%s)", len(target.Sessions), strings.Join(target.Sessions, ", "))
	}
	if target.Terminate != nil {
		if err := target.Terminate(); err != nil {
			// stay in terminating; a retry is idempotent and returns this action
			logger.Error("Kill switch termination callback failed",
				zap.Error(err),
				zap.String("killSwitchID", action.ID))
			stored.UpdatedAt = time.Now().UTC()
			return stored, fmt.Errorf("terminate %s %s: %w", targetType, targetID, err)
		}
	}

	stored.State = model.KillSwitchTerminated
	stored.ImpactSummary = impact
	stored.UpdatedAt = time.Now().UTC()
	c.registry.Unregister(targetType, targetID)

	logger.Warn("Kill switch activated",
		zap.String("killSwitchID", stored.ID),
		zap.String("targetType", string(targetType)),
		zap.String("targetID", targetID),
		zap.String("actor", actor))
	return *c.byID[action.ID], nil
}

func (c *Controller) Get(id string) (model.KillSwitchAction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	action, ok := c.byID[id]
	if !ok {
		return model.KillSwitchAction{}, sentinel_errors.ErrKillSwitchNotFound
	}
	return *action, nil
}

func (c *Controller) List() []model.KillSwitchAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.KillSwitchAction, 0, len(c.byID))
	for _, a := range c.byID {
		out = append(out, *a)
	}
	return out
}

func rollbackText(target Target) string {
	return fmt.Sprintf("Re-register %s %q with its supervisor and restore its configuration; "+
		"terminated sessions must be re-established by their owners. No automated reversal exists.",
		target.Type, target.ID)
}
