package model

import "time"

type IncidentState string

const (
	IncidentOpen          IncidentState = "open"
	IncidentInvestigating IncidentState = "investigating"
	IncidentResolved      IncidentState = "resolved"
	IncidentClosed        IncidentState = "closed"
)

// Incident aggregates related alerts/events. Version is a monotonic counter
// for optimistic concurrency: every write must supply the version it read.
type Incident struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	State          IncidentState `json:"state"`
	Severity       Severity      `json:"severity"`
	AlertIDs       []string      `json:"alert_ids,omitempty"`
	EventIDs       []string      `json:"event_ids,omitempty"`
	OpenedBy       string        `json:"opened_by,omitempty"` // empty for auto-opened
	ResolutionNote string        `json:"resolution_note,omitempty"`
	FalsePositive  bool          `json:"false_positive,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int           `json:"version"`
}
