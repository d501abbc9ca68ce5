package model

import "time"

type TargetType string

const (
	TargetPlugin     TargetType = "plugin"
	TargetAgent      TargetType = "agent"
	TargetConnection TargetType = "connection"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetPlugin, TargetAgent, TargetConnection:
		return true
	}
	return false
}

type KillSwitchState string

const (
	KillSwitchActive      KillSwitchState = "active"
	KillSwitchTerminating KillSwitchState = "terminating"
	KillSwitchTerminated  KillSwitchState = "terminated" // terminal, irreversible
)

// KillSwitchAction records an emergency termination. RollbackInstructions is
// human-readable text only; no automated reversal exists.
type KillSwitchAction struct {
	ID                   string          `json:"id"`
	TargetType           TargetType      `json:"target_type"`
	TargetID             string          `json:"target_id"`
	State                KillSwitchState `json:"state"`
	Reason               string          `json:"reason"`
	ActivatedBy          string          `json:"activated_by,omitempty"`
	ImpactSummary        string          `json:"impact_summary,omitempty"`
	RollbackInstructions string          `json:"rollback_instructions,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
