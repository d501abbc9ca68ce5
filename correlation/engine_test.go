package correlation_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/sentinel/correlation"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

func burstRule(threshold int, window time.Duration) correlation.Rule {
	return correlation.Rule{
		Name:      "failed-auth-burst",
		Category:  "failed_authentication",
		Threshold: threshold,
		Window:    window,
		Severity:  model.SeverityCritical,
	}
}

func authEvent(n int, ts time.Time) model.SecurityEvent {
	return model.SecurityEvent{
		ID:        fmt.Sprintf("ev-%d", n),
		Source:    "web-1",
		Category:  "failed_authentication",
		Severity:  model.SeverityMedium,
		Timestamp: ts,
	}
}

func TestCorrelationEngine(t *testing.T) {
	logger.InitTestLogger()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("FiresExactlyOnceAtThreshold", func(t *testing.T) {
		e := correlation.NewEngine([]correlation.Rule{burstRule(5, 10*time.Minute)})

		var fired []model.Alert
		for n := 0; n < 6; n++ {
			fired = append(fired, e.Observe(authEvent(n, base.Add(time.Duration(n)*time.Second)))...)
		}

		require.Len(t, fired, 1, "threshold crossing must alert exactly once")
		alert := fired[0]
		assert.Equal(t, "failed-auth-burst", alert.Rule)
		assert.Equal(t, "web-1", alert.Source)
		assert.Equal(t, model.SeverityCritical, alert.Severity)
		assert.Len(t, alert.EventIDs, 5)
	})

	t.Run("BelowThreshold_NoAlert", func(t *testing.T) {
		e := correlation.NewEngine([]correlation.Rule{burstRule(5, 10*time.Minute)})
		for n := 0; n < 4; n++ {
			assert.Empty(t, e.Observe(authEvent(n, base.Add(time.Duration(n)*time.Second))))
		}
	})

	t.Run("WindowRoll_RearmsAlert", func(t *testing.T) {
		e := correlation.NewEngine([]correlation.Rule{burstRule(3, time.Minute)})

		var fired int
		for n := 0; n < 3; n++ {
			fired += len(e.Observe(authEvent(n, base.Add(time.Duration(n)*time.Second))))
		}
		assert.Equal(t, 1, fired)

		// the window empties; the next burst is a fresh crossing
		later := base.Add(10 * time.Minute)
		fired = 0
		for n := 10; n < 13; n++ {
			fired += len(e.Observe(authEvent(n, later.Add(time.Duration(n)*time.Second))))
		}
		assert.Equal(t, 1, fired)
	})

	t.Run("SourcesTrackedIndependently", func(t *testing.T) {
		e := correlation.NewEngine([]correlation.Rule{burstRule(3, time.Minute)})

		for n := 0; n < 2; n++ {
			ev := authEvent(n, base.Add(time.Duration(n)*time.Second))
			assert.Empty(t, e.Observe(ev))
			ev.ID = fmt.Sprintf("other-%d", n)
			ev.Source = "web-2"
			assert.Empty(t, e.Observe(ev))
		}
		// third event on web-1 only fires for web-1
		alerts := e.Observe(authEvent(2, base.Add(2*time.Second)))
		require.Len(t, alerts, 1)
		assert.Equal(t, "web-1", alerts[0].Source)
	})

	t.Run("WildcardCategory", func(t *testing.T) {
		rule := correlation.Rule{Name: "any-burst", Category: "*", Threshold: 2, Window: time.Minute, Severity: model.SeverityHigh}
		e := correlation.NewEngine([]correlation.Rule{rule})

		ev := authEvent(0, base)
		assert.Empty(t, e.Observe(ev))
		ev2 := ev
		ev2.ID = "ev-x"
		ev2.Category = "network_anomaly"
		alerts := e.Observe(ev2)
		require.Len(t, alerts, 1)
		assert.Equal(t, "any-burst", alerts[0].Rule)
	})

	t.Run("CategoryMismatch_Ignored", func(t *testing.T) {
		e := correlation.NewEngine([]correlation.Rule{burstRule(1, time.Minute)})
		ev := authEvent(0, base)
		ev.Category = "resource_access"
		assert.Empty(t, e.Observe(ev))
	})
}
