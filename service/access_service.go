package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthguard/sentinel/audit"
	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/metrics"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/pdp/engine"
	pdp_model "github.com/hearthguard/sentinel/pdp/model"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/util"
)

type IAccessService interface {
	EvaluateAccess(ctx context.Context, principalID, resource, action string, accessCtx model.AccessContext) (*model.AccessDecision, *pdp_model.EvaluationTrace, error)
	Decision(id string) (model.AccessDecision, error)
}

// AccessService evaluates access requests against the current policy
// snapshot. Each decision is written through the audit log before it is
// returned; an audit failure turns the decision into a deny (fail closed).
type AccessService struct {
	store        *pdp_store.Store
	evaluator    *engine.Evaluator
	auditService audit.Service
	cacheService *util.CacheService
	eventBus     *util.EventBus

	mu           sync.RWMutex
	decisions    map[string]model.AccessDecision
	order        []string
	maxDecisions int
}

func NewAccessService(
	store *pdp_store.Store,
	evaluator *engine.Evaluator,
	auditService audit.Service,
	cacheService *util.CacheService,
	eventBus *util.EventBus,
) *AccessService {
	return &AccessService{
		store:        store,
		evaluator:    evaluator,
		auditService: auditService,
		cacheService: cacheService,
		eventBus:     eventBus,
		decisions:    make(map[string]model.AccessDecision),
		maxDecisions: 10000,
	}
}

func (s *AccessService) EvaluateAccess(ctx context.Context, principalID, resource, action string, accessCtx model.AccessContext) (*model.AccessDecision, *pdp_model.EvaluationTrace, error) {
	if accessCtx.Timestamp.IsZero() {
		accessCtx.Timestamp = time.Now().UTC()
	}

	request := &pdp_model.AccessRequest{
		PrincipalID: principalID,
		Resource:    resource,
		Action:      action,
		Context:     accessCtx,
	}
	fingerprint := s.fingerprint(request)

	// a cached decision skips evaluation; the audit append below still runs
	// for every request
	result := model.ResultDeny
	matchedPolicyID := ""
	var trace *pdp_model.EvaluationTrace
	cached, cacheErr := s.cacheService.GetDecision(ctx, fingerprint)
	if cacheErr != nil {
		logger.Warn("Decision cache lookup failed", zap.Error(cacheErr))
	}
	if cached != nil {
		result = cached.Result
		matchedPolicyID = cached.MatchedPolicyID
	} else {
		evaluation, evalTrace := s.evaluator.Evaluate(ctx, s.store.Current(), request)
		result = evaluation.Result
		matchedPolicyID = evaluation.MatchedPolicyID
		trace = evalTrace
	}

	decision := &model.AccessDecision{
		ID:              uuid.New().String(),
		PrincipalID:     principalID,
		Resource:        resource,
		Action:          action,
		Context:         accessCtx,
		Result:          result,
		MatchedPolicyID: matchedPolicyID,
		Timestamp:       time.Now().UTC(),
	}

	if _, err := s.auditService.Append(ctx, audit.RecordAccessDecision, principalID, decision); err != nil {
		// fail closed: the audit record is part of the decision contract
		decision.Result = model.ResultDeny
		decision.MatchedPolicyID = ""
		metrics.DecisionsTotal.WithLabelValues(string(model.ResultDeny)).Inc()
		logger.Error("Audit write failed, decision denied",
			zap.Error(err),
			zap.String("principalID", principalID),
			zap.String("resource", resource))
		return decision, trace, fmt.Errorf("evaluate access: %w", sentinel_errors.ErrAuditWriteFailed)
	}

	s.register(*decision)
	metrics.DecisionsTotal.WithLabelValues(string(decision.Result)).Inc()

	if cached == nil {
		if err := s.cacheService.SetDecision(ctx, fingerprint, decision); err != nil {
			logger.Warn("Failed to cache decision", zap.Error(err), zap.String("decisionID", decision.ID))
		}
	}
	s.eventBus.Publish(ctx, util.TopicDecisionRecorded, *decision)

	return decision, trace, nil
}

// Decision returns a previously issued decision for override reference.
func (s *AccessService) Decision(id string) (model.AccessDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decision, ok := s.decisions[id]
	if !ok {
		return model.AccessDecision{}, sentinel_errors.ErrDecisionNotFound
	}
	return decision, nil
}

func (s *AccessService) register(decision model.AccessDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= s.maxDecisions {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.decisions, oldest)
	}
	s.decisions[decision.ID] = decision
	s.order = append(s.order, decision.ID)
}

func (s *AccessService) fingerprint(request *pdp_model.AccessRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%s|%s",
		request.PrincipalID, request.Resource, request.Action,
		request.Context.HourOfDay(), request.Context.Location,
		request.Context.Device, request.Context.ResourceOwner)
	return hex.EncodeToString(h.Sum(nil))
}
