package model

import (
	"time"
)

type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// ConditionType is the closed set of condition kinds a policy may carry.
// Adding a kind requires registering an evaluator in pdp/engine.
type ConditionType string

const (
	ConditionTimeRange     ConditionType = "time_range"
	ConditionLocation      ConditionType = "location"
	ConditionDevice        ConditionType = "device"
	ConditionResourceOwner ConditionType = "resource_owner"
)

func (t ConditionType) Known() bool {
	switch t {
	case ConditionTimeRange, ConditionLocation, ConditionDevice, ConditionResourceOwner:
		return true
	}
	return false
}

// Condition operators per type:
//
//	time_range:     "between" | "outside" over [StartHour, EndHour]
//	location:       "in" | "not_in" over Tags
//	device:         "in" | "not_in" over Tags
//	resource_owner: "equals" | "not_equals" (context owner vs. principal)
const (
	OpBetween   = "between"
	OpOutside   = "outside"
	OpIn        = "in"
	OpNotIn     = "not_in"
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
)

type Condition struct {
	Type      ConditionType `json:"type"`
	Operator  string        `json:"operator"`
	StartHour int           `json:"start_hour,omitempty"`
	EndHour   int           `json:"end_hour,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
}

type Policy struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Effect      Effect      `json:"effect"`
	Resource    string      `json:"resource"` // pattern, e.g. "admin.*" or "*"
	Action      string      `json:"action"`   // pattern, e.g. "read" or "*"
	Conditions  []Condition `json:"conditions,omitempty"`
	Priority    int         `json:"priority"` // higher evaluated first
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Role carries resource:action permission patterns and parent role ids.
// Parents form a DAG; cycles are rejected when a snapshot is built.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"` // "resource:action" wildcard patterns
	Parents     []string  `json:"parents,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Principal struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Roles      []string          `json:"roles,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
