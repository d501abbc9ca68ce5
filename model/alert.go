package model

import "time"

// Alert is a correlation-engine (or escalation) output. Rule names the rule
// that fired, e.g. "failed-auth-burst" or "override-escalation".
type Alert struct {
	ID             string     `json:"id"`
	Rule           string     `json:"rule"`
	Source         string     `json:"source,omitempty"`
	EventIDs       []string   `json:"event_ids,omitempty"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
