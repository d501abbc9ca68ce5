package override_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/override"
)

func TestOverrideManager(t *testing.T) {
	logger.InitTestLogger()
	cfg := override.Config{Window: time.Hour, EscalateThreshold: 3}

	t.Run("Record_Success", func(t *testing.T) {
		m := override.NewManager(cfg)
		ov, alert, err := m.Record("analyst-1", "dec-1", "pol-1", model.ReasonFalsePositive, "wrong geo tag", nil)
		require.NoError(t, err)
		assert.Nil(t, alert)
		assert.NotEmpty(t, ov.ID)
		assert.Equal(t, "dec-1", ov.DecisionID)

		got, err := m.Get(ov.ID)
		require.NoError(t, err)
		assert.Equal(t, ov.ID, got.ID)
	})

	t.Run("Record_RejectsUnknownReason", func(t *testing.T) {
		m := override.NewManager(cfg)
		_, _, err := m.Record("analyst-1", "dec-1", "pol-1", "gut_feeling", "just because", nil)
		assert.ErrorIs(t, err, sentinel_errors.ErrInvalidReasonCode)
	})

	t.Run("Record_RequiresExplanation", func(t *testing.T) {
		m := override.NewManager(cfg)
		_, _, err := m.Record("analyst-1", "dec-1", "pol-1", model.ReasonBusinessNeed, "", nil)
		assert.ErrorIs(t, err, sentinel_errors.ErrExplanationRequired)
	})

	t.Run("CommitHookFailureAborts", func(t *testing.T) {
		m := override.NewManager(cfg)
		hookErr := errors.New("audit down")
		ov, _, err := m.Record("analyst-1", "dec-1", "pol-1", model.ReasonTesting, "load test", func(model.Override) error { return hookErr })
		assert.ErrorIs(t, err, hookErr)
		assert.Empty(t, ov.ID)
	})

	t.Run("Escalation_FiresOncePerCrossing", func(t *testing.T) {
		m := override.NewManager(cfg)

		var alerts []*model.Alert
		for n := 0; n < 5; n++ {
			_, alert, err := m.Record("analyst-1", "dec-1", "pol-1", model.ReasonEmergency, "incident response", nil)
			require.NoError(t, err)
			if alert != nil {
				alerts = append(alerts, alert)
			}
		}

		// threshold 3: the 4th override crosses, the 5th stays silent
		require.Len(t, alerts, 1)
		assert.Equal(t, "override-escalation", alerts[0].Rule)
		assert.Equal(t, "analyst-1", alerts[0].Source)
		assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
	})

	t.Run("Escalation_PerPrincipalPolicyPair", func(t *testing.T) {
		m := override.NewManager(override.Config{Window: time.Hour, EscalateThreshold: 1})

		_, alert, err := m.Record("a", "d1", "p1", model.ReasonTesting, "t", nil)
		require.NoError(t, err)
		assert.Nil(t, alert)

		// different policy: its own counter, still below threshold
		_, alert, err = m.Record("a", "d2", "p2", model.ReasonTesting, "t", nil)
		require.NoError(t, err)
		assert.Nil(t, alert)

		_, alert, err = m.Record("a", "d3", "p1", model.ReasonTesting, "t", nil)
		require.NoError(t, err)
		assert.NotNil(t, alert)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		m := override.NewManager(cfg)
		_, err := m.Get("missing")
		assert.ErrorIs(t, err, sentinel_errors.ErrOverrideNotFound)
	})
}
