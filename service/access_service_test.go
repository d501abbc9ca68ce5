package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/db"
	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/ingest"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/risk"
	"github.com/hearthguard/sentinel/service"
	"github.com/hearthguard/sentinel/test/mock"
	"github.com/hearthguard/sentinel/util"
)

func testServiceConfig() service.Config {
	return service.Config{
		Pipeline: ingest.Config{QueueSize: 64, Workers: 1, SubmitTimeout: 100 * time.Millisecond},
		Risk: risk.Config{
			BaseScores:         map[string]float64{"failed_authentication": 25, "sandbox_escape": 85},
			DefaultBaseScore:   15,
			RepeatPenalty:      5,
			DecayWindow:        10 * time.Minute,
			AutoBlockThreshold: 90,
			EscalateThreshold:  75,
		},
		CorrelationRules:  service.DefaultCorrelationRules(5, 10*time.Minute),
		OverrideWindow:    time.Hour,
		OverrideThreshold: 3,
	}
}

func newTestServices(auditService audit.Service) (*service.Services, *pdp_store.Store) {
	store := pdp_store.NewStore()
	services := service.NewServices(testServiceConfig(), store, nil, auditService, util.NewEventBus())
	return services, store
}

func TestAccessService(t *testing.T) {
	logger.InitTestLogger()
	ctx := context.Background()

	t.Run("Evaluate_RecordsDecisionAndAudits", func(t *testing.T) {
		services, store := newTestServices(audit.NewLog())
		_, err := store.PutPolicy(model.Policy{ID: "p1", Name: "allow-docs", Effect: model.EffectAllow, Resource: "docs.*", Action: "read", Priority: 1})
		require.NoError(t, err)

		decision, trace, err := services.Access.EvaluateAccess(ctx, "alice", "docs.readme", "read", model.AccessContext{})
		require.NoError(t, err)
		assert.Equal(t, model.ResultAllow, decision.Result)
		assert.Equal(t, "p1", decision.MatchedPolicyID)
		assert.NotNil(t, trace)

		// the decision is in the audit log before the caller sees it
		records, err := services.Audit.Export(ctx, audit.Filter{Types: []audit.RecordType{audit.RecordAccessDecision}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "alice", records[0].PrincipalID)

		// and retrievable for override reference
		stored, err := services.Access.Decision(decision.ID)
		require.NoError(t, err)
		assert.Equal(t, decision.ID, stored.ID)
	})

	t.Run("Evaluate_DefaultDeny", func(t *testing.T) {
		services, _ := newTestServices(audit.NewLog())
		decision, _, err := services.Access.EvaluateAccess(ctx, "alice", "anything", "write", model.AccessContext{})
		require.NoError(t, err)
		assert.Equal(t, model.ResultDeny, decision.Result)
		assert.Empty(t, decision.MatchedPolicyID)
	})

	t.Run("Evaluate_AuditFailureDeniesAllow", func(t *testing.T) {
		services, store := newTestServices(audit.NewLog(&mock.FailingRepository{Err: errors.New("disk full")}))
		_, err := store.PutPolicy(model.Policy{ID: "p1", Name: "allow-all", Effect: model.EffectAllow, Resource: "*", Action: "*", Priority: 1})
		require.NoError(t, err)

		decision, _, err := services.Access.EvaluateAccess(ctx, "alice", "docs", "read", model.AccessContext{})
		assert.ErrorIs(t, err, sentinel_errors.ErrAuditWriteFailed)
		require.NotNil(t, decision)
		assert.Equal(t, model.ResultDeny, decision.Result, "allow without an audit record must flip to deny")
		assert.Empty(t, decision.MatchedPolicyID)
	})

	t.Run("Decision_NotFound", func(t *testing.T) {
		services, _ := newTestServices(audit.NewLog())
		_, err := services.Access.Decision("missing")
		assert.ErrorIs(t, err, sentinel_errors.ErrDecisionNotFound)
	})

	t.Run("Evaluate_ServesCachedDecision", func(t *testing.T) {
		mr := miniredis.RunT(t)
		viper.Set("redis.addr", mr.Addr())
		viper.Set("redis.encryptionKey", "0123456789abcdef0123456789abcdef")
		require.NoError(t, db.InitRedis())
		t.Cleanup(func() {
			db.CloseRedis()
			db.RedisClient = nil
		})

		services, store := newTestServices(audit.NewLog())
		_, err := store.PutPolicy(model.Policy{ID: "p1", Name: "allow-docs", Effect: model.EffectAllow, Resource: "docs.*", Action: "read", Priority: 1})
		require.NoError(t, err)

		first, _, err := services.Access.EvaluateAccess(ctx, "alice", "docs.readme", "read", model.AccessContext{})
		require.NoError(t, err)
		require.Equal(t, model.ResultAllow, first.Result)

		// a direct store edit bypasses the invalidation hook; the repeated
		// request is answered from the cache
		_, err = store.RemovePolicy("p1")
		require.NoError(t, err)
		cachedResult, _, err := services.Access.EvaluateAccess(ctx, "alice", "docs.readme", "read", model.AccessContext{})
		require.NoError(t, err)
		assert.Equal(t, model.ResultAllow, cachedResult.Result)
		assert.Equal(t, "p1", cachedResult.MatchedPolicyID)

		// each served request still lands in the audit log
		records, err := services.Audit.Export(ctx, audit.Filter{Types: []audit.RecordType{audit.RecordAccessDecision}})
		require.NoError(t, err)
		assert.Len(t, records, 2)

		// after invalidation the evaluator runs against the current snapshot
		require.NoError(t, db.InvalidateDecisions(ctx))
		fresh, _, err := services.Access.EvaluateAccess(ctx, "alice", "docs.readme", "read", model.AccessContext{})
		require.NoError(t, err)
		assert.Equal(t, model.ResultDeny, fresh.Result)
	})
}

func TestOverrideServiceFlow(t *testing.T) {
	logger.InitTestLogger()
	ctx := context.Background()

	t.Run("Record_AnnotatesExistingDecision", func(t *testing.T) {
		services, _ := newTestServices(audit.NewLog())
		decision, _, err := services.Access.EvaluateAccess(ctx, "alice", "vault", "open", model.AccessContext{})
		require.NoError(t, err)
		require.Equal(t, model.ResultDeny, decision.Result)

		override, err := services.Override.RecordOverride(ctx, "analyst-1", decision.ID, model.ReasonFalsePositive, "device tag is stale")
		require.NoError(t, err)
		assert.Equal(t, decision.ID, override.DecisionID)

		records, err := services.Audit.Export(ctx, audit.Filter{Types: []audit.RecordType{audit.RecordOverride}})
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("Record_UnknownDecision", func(t *testing.T) {
		services, _ := newTestServices(audit.NewLog())
		_, err := services.Override.RecordOverride(ctx, "analyst-1", "no-such-decision", model.ReasonTesting, "test")
		assert.ErrorIs(t, err, sentinel_errors.ErrDecisionNotFound)
	})

	t.Run("Record_EscalationRaisesAlert", func(t *testing.T) {
		services, _ := newTestServices(audit.NewLog())
		decision, _, err := services.Access.EvaluateAccess(ctx, "alice", "vault", "open", model.AccessContext{})
		require.NoError(t, err)

		for n := 0; n < 4; n++ {
			_, err := services.Override.RecordOverride(ctx, "analyst-1", decision.ID, model.ReasonEmergency, "active incident")
			require.NoError(t, err)
		}

		alerts := services.Event.ActiveAlerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, "override-escalation", alerts[0].Rule)
	})
}
