package audit

import (
	"encoding/json"
	"time"
)

type RecordType string

const (
	RecordAccessDecision     RecordType = "access_decision"
	RecordSecurityEvent      RecordType = "security_event"
	RecordOverride           RecordType = "override"
	RecordIncidentOpened     RecordType = "incident_opened"
	RecordIncidentTransition RecordType = "incident_transition"
	RecordKillSwitch         RecordType = "kill_switch"
	RecordPolicyChange       RecordType = "policy_change"
	RecordSystem             RecordType = "system"
)

// Record is one link in the hash chain. Payload is stored as the exact bytes
// that were hashed, so verification is byte-for-byte reproducible.
type Record struct {
	Sequence    uint64          `json:"sequence"`
	Type        RecordType      `json:"type"`
	PrincipalID string          `json:"principal_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
	PrevHash    string          `json:"prev_hash"`
	Hash        string          `json:"hash"`
}

// Filter selects records for export. Zero values match everything.
type Filter struct {
	Start       time.Time
	End         time.Time
	PrincipalID string
	Types       []RecordType
}

func (f Filter) matches(rec Record) bool {
	if !f.Start.IsZero() && rec.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && rec.Timestamp.After(f.End) {
		return false
	}
	if f.PrincipalID != "" && rec.PrincipalID != f.PrincipalID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if rec.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VerifyResult reports the outcome of a chain verification. FirstBadSequence
// is only meaningful when Valid is false.
type VerifyResult struct {
	Valid            bool   `json:"valid"`
	Records          int    `json:"records"`
	FirstBadSequence uint64 `json:"first_bad_sequence,omitempty"`
}
