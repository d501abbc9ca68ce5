package killswitch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/killswitch"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

func TestKillSwitchController(t *testing.T) {
	logger.InitTestLogger()

	t.Run("Activate_TerminatesTarget", func(t *testing.T) {
		registry := killswitch.NewRegistry()
		terminated := false
		registry.Register(killswitch.Target{
			Type:      model.TargetPlugin,
			ID:        "pdf-renderer",
			Sessions:  []string{"s1", "s2"},
			Terminate: func() error { terminated = true; return nil },
		})
		c := killswitch.NewController(registry)

		action, err := c.Activate(model.TargetPlugin, "pdf-renderer", "sandbox escape", "analyst-1", nil)
		require.NoError(t, err)
		assert.True(t, terminated)
		assert.Equal(t, model.KillSwitchTerminated, action.State)
		assert.Contains(t, action.ImpactSummary, "2 sessions closed")
		assert.NotEmpty(t, action.RollbackInstructions)

		// the target is gone from the registry
		_, ok := registry.Lookup(model.TargetPlugin, "pdf-renderer")
		assert.False(t, ok)
	})

	t.Run("Activate_Idempotent", func(t *testing.T) {
		registry := killswitch.NewRegistry()
		calls := 0
		registry.Register(killswitch.Target{
			Type:      model.TargetAgent,
			ID:        "agent-7",
			Terminate: func() error { calls++; return nil },
		})
		c := killswitch.NewController(registry)

		first, err := c.Activate(model.TargetAgent, "agent-7", "compromised", "a", nil)
		require.NoError(t, err)
		second, err := c.Activate(model.TargetAgent, "agent-7", "compromised again", "b", nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, calls, "terminate must run once")
	})

	t.Run("Activate_UnknownTarget_NoStateChange", func(t *testing.T) {
		c := killswitch.NewController(killswitch.NewRegistry())
		_, err := c.Activate(model.TargetConnection, "conn-1", "r", "a", nil)
		assert.ErrorIs(t, err, sentinel_errors.ErrKillSwitchTargetNotFound)
		assert.Empty(t, c.List())
	})

	t.Run("Activate_InvalidType", func(t *testing.T) {
		c := killswitch.NewController(killswitch.NewRegistry())
		_, err := c.Activate("satellite", "x", "r", "a", nil)
		assert.ErrorIs(t, err, sentinel_errors.ErrInvalidTargetType)
	})

	t.Run("CommitHookFailureAborts", func(t *testing.T) {
		registry := killswitch.NewRegistry()
		registry.Register(killswitch.Target{Type: model.TargetPlugin, ID: "p1"})
		c := killswitch.NewController(registry)

		hookErr := errors.New("audit down")
		_, err := c.Activate(model.TargetPlugin, "p1", "r", "a", func(model.KillSwitchAction) error { return hookErr })
		assert.ErrorIs(t, err, hookErr)
		assert.Empty(t, c.List())
		_, ok := registry.Lookup(model.TargetPlugin, "p1")
		assert.True(t, ok, "target must survive an aborted activation")
	})

	t.Run("TerminateFailure_StaysTerminating", func(t *testing.T) {
		registry := killswitch.NewRegistry()
		calls := 0
		registry.Register(killswitch.Target{
			Type: model.TargetConnection,
			ID:   "c1",
			Terminate: func() error {
				calls++
				if calls == 1 {
					return errors.New("broker unreachable")
				}
				return nil
			},
		})
		c := killswitch.NewController(registry)

		action, err := c.Activate(model.TargetConnection, "c1", "exfil suspected", "a", nil)
		require.Error(t, err)
		assert.Equal(t, model.KillSwitchTerminating, action.State)

		// a retry returns the existing terminating action
		retry, err := c.Activate(model.TargetConnection, "c1", "exfil suspected", "a", nil)
		require.NoError(t, err)
		assert.Equal(t, action.ID, retry.ID)
		assert.Equal(t, 1, calls)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		c := killswitch.NewController(killswitch.NewRegistry())
		_, err := c.Get("missing")
		assert.ErrorIs(t, err, sentinel_errors.ErrKillSwitchNotFound)
	})
}
