package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/pdp/engine"
	pdp_model "github.com/hearthguard/sentinel/pdp/model"
	"github.com/hearthguard/sentinel/pdp/store"
)

func buildStore(t *testing.T, roles []model.Role, policies []model.Policy, principals []model.Principal) *store.Store {
	t.Helper()
	s := store.NewStore()
	_, err := s.Load(roles, policies, principals)
	require.NoError(t, err)
	return s
}

func hourPtr(h int) *int { return &h }

func TestEvaluator(t *testing.T) {
	logger.InitTestLogger()
	evaluator := engine.NewEvaluator()
	ctx := context.Background()

	request := func(principal, resource, action string, accessCtx model.AccessContext) *pdp_model.AccessRequest {
		return &pdp_model.AccessRequest{PrincipalID: principal, Resource: resource, Action: action, Context: accessCtx}
	}

	t.Run("EmptyPolicySet_DeniesEveryone", func(t *testing.T) {
		s := buildStore(t, nil, nil, []model.Principal{{ID: "admin", Name: "Admin", Roles: nil}})

		eval, trace := evaluator.Evaluate(ctx, s.Current(), request("admin", "anything", "read", model.AccessContext{}))
		assert.Equal(t, model.ResultDeny, eval.Result)
		assert.Empty(t, eval.MatchedPolicyID)
		require.NotEmpty(t, trace.Steps)
		assert.Equal(t, "default", trace.Steps[len(trace.Steps)-1].Stage)
	})

	t.Run("FirstMatchWins_ByPriority", func(t *testing.T) {
		s := buildStore(t, nil, []model.Policy{
			{ID: "low-allow", Effect: model.EffectAllow, Resource: "db.*", Action: "*", Priority: 1},
			{ID: "high-deny", Effect: model.EffectDeny, Resource: "db.prod", Action: "write", Priority: 10},
		}, nil)

		eval, _ := evaluator.Evaluate(ctx, s.Current(), request("u1", "db.prod", "write", model.AccessContext{}))
		assert.Equal(t, model.ResultDeny, eval.Result)
		assert.Equal(t, "high-deny", eval.MatchedPolicyID)

		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("u1", "db.staging", "write", model.AccessContext{}))
		assert.Equal(t, model.ResultAllow, eval.Result)
		assert.Equal(t, "low-allow", eval.MatchedPolicyID)
	})

	t.Run("EqualPriority_DenyWins", func(t *testing.T) {
		s := buildStore(t, nil, []model.Policy{
			{ID: "allow", Effect: model.EffectAllow, Resource: "*", Action: "*", Priority: 5},
			{ID: "deny", Effect: model.EffectDeny, Resource: "*", Action: "*", Priority: 5},
		}, nil)

		eval, _ := evaluator.Evaluate(ctx, s.Current(), request("u1", "r", "a", model.AccessContext{}))
		assert.Equal(t, model.ResultDeny, eval.Result)
		assert.Equal(t, "deny", eval.MatchedPolicyID)
	})

	t.Run("TimeRangeCondition", func(t *testing.T) {
		// business-hours allow at priority 5, after-hours deny at 10
		s := buildStore(t, nil, []model.Policy{
			{ID: "P1", Effect: model.EffectAllow, Resource: "reports", Action: "read", Priority: 5,
				Conditions: []model.Condition{{Type: model.ConditionTimeRange, Operator: model.OpBetween, StartHour: 9, EndHour: 17}}},
			{ID: "P2", Effect: model.EffectDeny, Resource: "reports", Action: "read", Priority: 10,
				Conditions: []model.Condition{{Type: model.ConditionTimeRange, Operator: model.OpOutside, StartHour: 9, EndHour: 17}}},
		}, nil)

		eval, _ := evaluator.Evaluate(ctx, s.Current(), request("u1", "reports", "read",
			model.AccessContext{Hour: hourPtr(23)}))
		assert.Equal(t, model.ResultDeny, eval.Result)
		assert.Equal(t, "P2", eval.MatchedPolicyID)

		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("u1", "reports", "read",
			model.AccessContext{Hour: hourPtr(12)}))
		assert.Equal(t, model.ResultAllow, eval.Result)
		assert.Equal(t, "P1", eval.MatchedPolicyID)
	})

	t.Run("TimeRangeWrapsMidnight", func(t *testing.T) {
		s := buildStore(t, nil, []model.Policy{
			{ID: "night", Effect: model.EffectAllow, Resource: "*", Action: "*", Priority: 1,
				Conditions: []model.Condition{{Type: model.ConditionTimeRange, Operator: model.OpBetween, StartHour: 22, EndHour: 6}}},
		}, nil)

		eval, _ := evaluator.Evaluate(ctx, s.Current(), request("u1", "r", "a", model.AccessContext{Hour: hourPtr(23)}))
		assert.Equal(t, model.ResultAllow, eval.Result)
		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("u1", "r", "a", model.AccessContext{Hour: hourPtr(3)}))
		assert.Equal(t, model.ResultAllow, eval.Result)
		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("u1", "r", "a", model.AccessContext{Hour: hourPtr(12)}))
		assert.Equal(t, model.ResultDeny, eval.Result)
	})

	t.Run("LocationAndDeviceConditions", func(t *testing.T) {
		s := buildStore(t, nil, []model.Policy{
			{ID: "office-only", Effect: model.EffectAllow, Resource: "vault", Action: "open", Priority: 1,
				Conditions: []model.Condition{
					{Type: model.ConditionLocation, Operator: model.OpIn, Tags: []string{"hq", "branch"}},
					{Type: model.ConditionDevice, Operator: model.OpNotIn, Tags: []string{"byod"}},
				}},
		}, nil)

		eval, _ := evaluator.Evaluate(ctx, s.Current(), request("u1", "vault", "open",
			model.AccessContext{Location: "hq", Device: "managed-laptop"}))
		assert.Equal(t, model.ResultAllow, eval.Result)

		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("u1", "vault", "open",
			model.AccessContext{Location: "cafe", Device: "managed-laptop"}))
		assert.Equal(t, model.ResultDeny, eval.Result)

		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("u1", "vault", "open",
			model.AccessContext{Location: "hq", Device: "byod"}))
		assert.Equal(t, model.ResultDeny, eval.Result)
	})

	t.Run("ResourceOwnerCondition", func(t *testing.T) {
		s := buildStore(t, nil, []model.Policy{
			{ID: "own-files", Effect: model.EffectAllow, Resource: "files.*", Action: "write", Priority: 1,
				Conditions: []model.Condition{{Type: model.ConditionResourceOwner, Operator: model.OpEquals}}},
		}, []model.Principal{{ID: "alice", Name: "Alice"}})

		eval, _ := evaluator.Evaluate(ctx, s.Current(), request("alice", "files.report", "write",
			model.AccessContext{ResourceOwner: "alice"}))
		assert.Equal(t, model.ResultAllow, eval.Result)

		eval, _ = evaluator.Evaluate(ctx, s.Current(), request("alice", "files.report", "write",
			model.AccessContext{ResourceOwner: "bob"}))
		assert.Equal(t, model.ResultDeny, eval.Result)
	})

	t.Run("MalformedCondition_FailsClosed", func(t *testing.T) {
		// hour bounds outside 0-23 make the condition unevaluable
		s := buildStore(t, nil, []model.Policy{
			{ID: "broken", Effect: model.EffectAllow, Resource: "*", Action: "*", Priority: 10,
				Conditions: []model.Condition{{Type: model.ConditionTimeRange, Operator: model.OpBetween, StartHour: 7, EndHour: 25}}},
			{ID: "fallback-allow", Effect: model.EffectAllow, Resource: "*", Action: "*", Priority: 1},
		}, nil)

		eval, trace := evaluator.Evaluate(ctx, s.Current(), request("u1", "r", "a", model.AccessContext{Hour: hourPtr(10)}))
		assert.Equal(t, model.ResultDeny, eval.Result)
		assert.True(t, eval.Malformed)
		assert.Empty(t, eval.MatchedPolicyID)
		require.NotEmpty(t, trace.Steps)
	})

	t.Run("RoleDAG_MergedIntoTrace", func(t *testing.T) {
		roles := []model.Role{
			{ID: "reader", Name: "reader", Permissions: []string{"docs:read"}},
			{ID: "writer", Name: "writer", Permissions: []string{"docs:write"}, Parents: []string{"reader"}},
			{ID: "admin", Name: "admin", Permissions: []string{"*:*"}, Parents: []string{"writer"}},
		}
		s := buildStore(t, roles, nil, []model.Principal{{ID: "root", Name: "Root", Roles: []string{"admin"}}})

		eval, trace := evaluator.Evaluate(ctx, s.Current(), request("root", "docs", "read", model.AccessContext{}))
		// permissions inform the trace only; with no policies the verdict stays deny
		assert.Equal(t, model.ResultDeny, eval.Result)
		assert.Equal(t, []string{"admin", "reader", "writer"}, trace.EffectiveRoles)
		assert.Equal(t, []string{"*:*", "docs:read", "docs:write"}, trace.Permissions)
		assert.True(t, engine.PermissionPatternsCover(trace.Permissions, "docs", "read"))
	})

	t.Run("UnknownPrincipal_NoRoles", func(t *testing.T) {
		s := buildStore(t, nil, []model.Policy{
			{ID: "open", Effect: model.EffectAllow, Resource: "public.*", Action: "read", Priority: 1},
		}, nil)

		eval, trace := evaluator.Evaluate(ctx, s.Current(), request("ghost", "public.page", "read", model.AccessContext{}))
		assert.Equal(t, model.ResultAllow, eval.Result)
		assert.Empty(t, trace.EffectiveRoles)
	})
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, engine.MatchPattern("*", "anything"))
	assert.True(t, engine.MatchPattern("db.*", "db.prod"))
	assert.True(t, engine.MatchPattern("db.prod", "db.prod"))
	assert.False(t, engine.MatchPattern("db.*", "cache.prod"))
	assert.False(t, engine.MatchPattern("db.prod", "db.prod.replica"))
}
