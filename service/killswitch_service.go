package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/killswitch"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/metrics"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/util"
)

type IKillSwitchService interface {
	Activate(ctx context.Context, targetType model.TargetType, targetID, reason, actor string) (model.KillSwitchAction, error)
	Get(id string) (model.KillSwitchAction, error)
	List() []model.KillSwitchAction
}

// KillSwitchService terminates registered targets. Activation is audited
// before the target moves out of ACTIVE; repeat activations are idempotent
// and do not re-audit.
type KillSwitchService struct {
	controller          *killswitch.Controller
	auditService        audit.Service
	notificationService *util.NotificationService
	validationUtil      *util.ValidationUtil
	eventBus            *util.EventBus
}

func NewKillSwitchService(
	controller *killswitch.Controller,
	auditService audit.Service,
	notificationService *util.NotificationService,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
) *KillSwitchService {
	return &KillSwitchService{
		controller:          controller,
		auditService:        auditService,
		notificationService: notificationService,
		validationUtil:      validationUtil,
		eventBus:            eventBus,
	}
}

func (s *KillSwitchService) Activate(ctx context.Context, targetType model.TargetType, targetID, reason, actor string) (model.KillSwitchAction, error) {
	if err := s.validationUtil.ValidateTargetType(targetType); err != nil {
		return model.KillSwitchAction{}, err
	}

	action, err := s.controller.Activate(targetType, targetID, reason, actor, func(pending model.KillSwitchAction) error {
		_, auditErr := s.auditService.Append(ctx, audit.RecordKillSwitch, actor, pending)
		return auditErr
	})
	if err != nil {
		return action, err
	}

	metrics.KillSwitchActivations.Inc()
	if notifyErr := s.notificationService.NotifyKillSwitch(ctx, action); notifyErr != nil {
		logger.Warn("Kill switch notification failed", zap.Error(notifyErr), zap.String("actionID", action.ID))
	}
	s.eventBus.Publish(ctx, util.TopicKillSwitchActivated, action)
	return action, nil
}

func (s *KillSwitchService) Get(id string) (model.KillSwitchAction, error) {
	return s.controller.Get(id)
}

func (s *KillSwitchService) List() []model.KillSwitchAction {
	return s.controller.List()
}
