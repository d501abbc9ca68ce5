package model

import "time"

type Result string

const (
	ResultAllow Result = "allow"
	ResultDeny  Result = "deny"
)

// AccessContext is the caller-supplied context evaluated by policy
// conditions. Hour overrides the timestamp's hour when set, which keeps
// evaluation reproducible for replayed requests.
type AccessContext struct {
	Timestamp     time.Time         `json:"timestamp,omitempty"`
	Hour          *int              `json:"hour,omitempty"`
	Location      string            `json:"location,omitempty"`
	Device        string            `json:"device,omitempty"`
	ResourceOwner string            `json:"resource_owner,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

func (c AccessContext) HourOfDay() int {
	if c.Hour != nil {
		return *c.Hour
	}
	return c.Timestamp.Hour()
}

// AccessDecision is immutable once created. MatchedPolicyID is empty for a
// default deny.
type AccessDecision struct {
	ID              string        `json:"id"`
	PrincipalID     string        `json:"principal_id"`
	Resource        string        `json:"resource"`
	Action          string        `json:"action"`
	Context         AccessContext `json:"context"`
	Result          Result        `json:"result"`
	MatchedPolicyID string        `json:"matched_policy_id,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}
