package model

import "time"

type ReasonCode string

const (
	ReasonFalsePositive    ReasonCode = "false_positive"
	ReasonBusinessNeed     ReasonCode = "business_need"
	ReasonTesting          ReasonCode = "testing"
	ReasonEmergency        ReasonCode = "emergency"
	ReasonAuthorizedChange ReasonCode = "authorized_change"
)

func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonFalsePositive, ReasonBusinessNeed, ReasonTesting, ReasonEmergency, ReasonAuthorizedChange:
		return true
	}
	return false
}

// Override records a principal's decision to proceed despite a deny.
type Override struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	DecisionID  string     `json:"decision_id"`
	PolicyID    string     `json:"policy_id,omitempty"` // matched policy of the overridden decision
	Reason      ReasonCode `json:"reason"`
	Explanation string     `json:"explanation"`
	CreatedAt   time.Time  `json:"created_at"`
}
