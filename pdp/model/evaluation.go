package model

import (
	"github.com/hearthguard/sentinel/model"
)

// TraceStep records one stage of an evaluation for operator review.
type TraceStep struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// EvaluationTrace explains how a decision was reached.
type EvaluationTrace struct {
	SnapshotVersion uint64      `json:"snapshot_version"`
	EffectiveRoles  []string    `json:"effective_roles"`
	Permissions     []string    `json:"permissions"`
	Steps           []TraceStep `json:"steps"`
}

func (t *EvaluationTrace) Add(stage, detail string) {
	t.Steps = append(t.Steps, TraceStep{Stage: stage, Detail: detail})
}

// PolicyEvaluationResult is the per-policy outcome inside an evaluation.
type PolicyEvaluationResult struct {
	PolicyID string       `json:"policy_id"`
	Effect   model.Effect `json:"effect"`
	Priority int          `json:"priority"`
	Matched  bool         `json:"matched"`
	Reason   string       `json:"reason,omitempty"`
}

// Evaluation is the evaluator's verdict before it is turned into a stored
// AccessDecision by the service layer.
type Evaluation struct {
	Result          model.Result `json:"result"`
	MatchedPolicyID string       `json:"matched_policy_id,omitempty"`
	Malformed       bool         `json:"-"` // set when a malformed condition forced the deny
}
