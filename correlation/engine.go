package correlation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

// Rule fires when Threshold events of Category arrive from one source within
// Window. Category "*" matches every event.
type Rule struct {
	Name      string
	Category  string
	Threshold int
	Window    time.Duration
	Severity  model.Severity
}

type entry struct {
	eventID string
	ts      time.Time
}

// windowState tracks the in-window events for one (source, category, rule)
// key. open is the dedup marker: it stays set while the count holds at or
// above the threshold, so a crossing emits exactly one alert.
type windowState struct {
	entries []entry
	open    bool
}

type stateKey struct {
	source string
	rule   string
}

// Engine maintains sliding-window counters per (source, category) and emits
// one alert per threshold crossing.
type Engine struct {
	mu    sync.Mutex
	rules []Rule
	state map[stateKey]*windowState
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{
		rules: rules,
		state: make(map[stateKey]*windowState),
	}
}

// Observe feeds one event through every applicable rule and returns the
// alerts that fired.
func (e *Engine) Observe(event model.SecurityEvent) []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var alerts []model.Alert
	for _, rule := range e.rules {
		if rule.Category != "*" && rule.Category != event.Category {
			continue
		}
		key := stateKey{source: event.Source, rule: rule.Name}
		st, ok := e.state[key]
		if !ok {
			st = &windowState{}
			e.state[key] = st
		}

		cutoff := event.Timestamp.Add(-rule.Window)
		kept := st.entries[:0]
		for _, en := range st.entries {
			if en.ts.After(cutoff) {
				kept = append(kept, en)
			}
		}
		st.entries = append(kept, entry{eventID: event.ID, ts: event.Timestamp})

		if len(st.entries) < rule.Threshold {
			st.open = false
			continue
		}
		if st.open {
			continue // alert already open for this key
		}
		st.open = true

		eventIDs := make([]string, len(st.entries))
		for i, en := range st.entries {
			eventIDs[i] = en.eventID
		}
		alert := model.Alert{
			ID:        uuid.New().String(),
			Rule:      rule.Name,
			Source:    event.Source,
			EventIDs:  eventIDs,
			Severity:  rule.Severity,
			Message:   fmt.Sprintf("%d %s events from %s within %s", len(eventIDs), event.Category, event.Source, rule.Window),
			CreatedAt: event.Timestamp,
		}
		alerts = append(alerts, alert)
		logger.Warn("Correlation rule fired",
			zap.String("rule", rule.Name),
			zap.String("source", event.Source),
			zap.Int("count", len(eventIDs)))
	}
	return alerts
}
