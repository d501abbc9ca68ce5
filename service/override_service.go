package service

import (
	"context"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/override"
	"github.com/hearthguard/sentinel/util"
)

type IOverrideService interface {
	RecordOverride(ctx context.Context, principalID, decisionID string, reason model.ReasonCode, explanation string) (model.Override, error)
	Get(id string) (model.Override, error)
}

// OverrideService records analyst overrides of deny decisions. The override
// never changes the decision; it annotates it in the audit trail and feeds
// the escalation tracker.
type OverrideService struct {
	manager        *override.Manager
	accessService  IAccessService
	eventService   *EventService
	auditService   audit.Service
	validationUtil *util.ValidationUtil
	eventBus       *util.EventBus
}

func NewOverrideService(
	manager *override.Manager,
	accessService IAccessService,
	eventService *EventService,
	auditService audit.Service,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
) *OverrideService {
	return &OverrideService{
		manager:        manager,
		accessService:  accessService,
		eventService:   eventService,
		auditService:   auditService,
		validationUtil: validationUtil,
		eventBus:       eventBus,
	}
}

func (s *OverrideService) RecordOverride(ctx context.Context, principalID, decisionID string, reason model.ReasonCode, explanation string) (model.Override, error) {
	if err := s.validationUtil.ValidateOverride(reason, explanation); err != nil {
		return model.Override{}, err
	}
	decision, err := s.accessService.Decision(decisionID)
	if err != nil {
		return model.Override{}, err
	}

	ov, alert, err := s.manager.Record(principalID, decisionID, decision.MatchedPolicyID, reason, explanation, func(pending model.Override) error {
		_, auditErr := s.auditService.Append(ctx, audit.RecordOverride, principalID, pending)
		return auditErr
	})
	if err != nil {
		return model.Override{}, err
	}

	s.eventBus.Publish(ctx, util.TopicOverrideRecorded, ov)
	if alert != nil {
		s.eventService.RaiseAlert(ctx, *alert)
		s.eventBus.Publish(ctx, util.TopicOverrideEscalated, *alert)
	}
	return ov, nil
}

func (s *OverrideService) Get(id string) (model.Override, error) {
	return s.manager.Get(id)
}
