package model

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SecurityEvent is the canonical, immutable form of inbound telemetry.
type SecurityEvent struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Category    string            `json:"category"`
	Severity    Severity          `json:"severity"`
	PrincipalID string            `json:"principal_id,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

type RiskBand string

const (
	BandLow      RiskBand = "low"      // 0-30
	BandMedium   RiskBand = "medium"   // 31-60
	BandHigh     RiskBand = "high"     // 61-80
	BandCritical RiskBand = "critical" // 81-100
)

type RiskFactor struct {
	Factor string  `json:"factor"`
	Delta  float64 `json:"delta"`
}

// RiskScore is computed once per event and never mutated.
type RiskScore struct {
	EventID  string       `json:"event_id"`
	Score    float64      `json:"score"`
	Band     RiskBand     `json:"band"`
	Factors  []RiskFactor `json:"factors"`
	ScoredAt time.Time    `json:"scored_at"`
}
