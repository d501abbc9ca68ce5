package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	pdp_model "github.com/hearthguard/sentinel/pdp/model"
	"github.com/hearthguard/sentinel/pdp/store"
)

// Evaluator resolves access requests against a borrowed snapshot. It holds
// no state of its own and is safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate walks the snapshot's policies in evaluation order and returns the
// first match; no match is a deny (zero-trust default). A malformed condition
// encountered mid-evaluation fails closed to deny and flags the evaluation
// so the caller can surface the policy for operator review.
func (e *Evaluator) Evaluate(ctx context.Context, snap *store.Snapshot, request *pdp_model.AccessRequest) (*pdp_model.Evaluation, *pdp_model.EvaluationTrace) {
	trace := &pdp_model.EvaluationTrace{SnapshotVersion: snap.Version}

	principal, known := snap.Principals[request.PrincipalID]
	if !known {
		principal = model.Principal{ID: request.PrincipalID}
		trace.Add("principal", fmt.Sprintf("principal %s not registered; evaluating with no roles", request.PrincipalID))
	}

	trace.EffectiveRoles, trace.Permissions = resolveEffectiveRoles(snap, principal)
	trace.Add("roles", fmt.Sprintf("resolved %d effective roles, %d permission patterns",
		len(trace.EffectiveRoles), len(trace.Permissions)))

	for _, policy := range snap.Policies {
		result := e.evaluatePolicy(request, principal, policy)
		if result.Reason == reasonMalformed {
			logger.Error("Malformed policy condition, failing closed",
				zap.String("policyID", policy.ID),
				zap.String("principalID", request.PrincipalID))
			trace.Add("policy:"+policy.ID, "malformed condition, evaluation denied")
			return &pdp_model.Evaluation{Result: model.ResultDeny, Malformed: true}, trace
		}
		if !result.Matched {
			trace.Add("policy:"+policy.ID, result.Reason)
			continue
		}
		trace.Add("policy:"+policy.ID, fmt.Sprintf("matched with effect %s at priority %d", policy.Effect, policy.Priority))
		verdict := model.ResultDeny
		if policy.Effect == model.EffectAllow {
			verdict = model.ResultAllow
		}
		return &pdp_model.Evaluation{Result: verdict, MatchedPolicyID: policy.ID}, trace
	}

	trace.Add("default", "no policy matched, deny by default")
	return &pdp_model.Evaluation{Result: model.ResultDeny}, trace
}

const reasonMalformed = "malformed condition"

func (e *Evaluator) evaluatePolicy(request *pdp_model.AccessRequest, principal model.Principal, policy model.Policy) pdp_model.PolicyEvaluationResult {
	result := pdp_model.PolicyEvaluationResult{
		PolicyID: policy.ID,
		Effect:   policy.Effect,
		Priority: policy.Priority,
		Matched:  true,
	}

	if !MatchPattern(policy.Resource, request.Resource) {
		result.Matched = false
		result.Reason = "resource pattern did not match"
		return result
	}
	if !MatchPattern(policy.Action, request.Action) {
		result.Matched = false
		result.Reason = "action pattern did not match"
		return result
	}

	// conditions are AND-ed; any failure skips the policy
	for _, condition := range policy.Conditions {
		eval, ok := conditionTable[condition.Type]
		if !ok {
			result.Matched = false
			result.Reason = reasonMalformed
			return result
		}
		matched, err := eval(condition, principal, request)
		if err != nil {
			result.Matched = false
			result.Reason = reasonMalformed
			return result
		}
		if !matched {
			result.Matched = false
			result.Reason = fmt.Sprintf("condition %s did not match", condition.Type)
			return result
		}
	}

	return result
}

// resolveEffectiveRoles walks the parent DAG from each assigned role and
// merges permission patterns. The graph was validated acyclic at snapshot
// publication, so the walk terminates.
func resolveEffectiveRoles(snap *store.Snapshot, principal model.Principal) ([]string, []string) {
	seen := make(map[string]bool)
	perms := make(map[string]bool)

	var walk func(roleID string)
	walk = func(roleID string) {
		if seen[roleID] {
			return
		}
		role, ok := snap.Roles[roleID]
		if !ok {
			return
		}
		seen[roleID] = true
		for _, p := range role.Permissions {
			perms[p] = true
		}
		for _, parent := range role.Parents {
			walk(parent)
		}
	}
	for _, roleID := range principal.Roles {
		walk(roleID)
	}

	roles := make([]string, 0, len(seen))
	for id := range seen {
		roles = append(roles, id)
	}
	sort.Strings(roles)

	patterns := make([]string, 0, len(perms))
	for p := range perms {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	return roles, patterns
}

// MatchPattern matches a value against a policy pattern: "*" matches
// anything, a trailing "*" matches by prefix, anything else is an exact
// match.
func MatchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == value
}

// PermissionPatternsCover reports whether any merged "resource:action"
// pattern covers the pair. Used for trace enrichment only; the verdict
// always comes from policy evaluation.
func PermissionPatternsCover(patterns []string, resource, action string) bool {
	for _, pattern := range patterns {
		parts := strings.SplitN(pattern, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if MatchPattern(parts[0], resource) && MatchPattern(parts[1], action) {
			return true
		}
	}
	return false
}
