package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

type NotificationService struct {
	// A message-queue or paging client would live here.
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyAlert(ctx context.Context, alert model.Alert) error {
	logger.Info("NOTIFICATION: Alert raised",
		zap.String("alertID", alert.ID),
		zap.String("rule", alert.Rule),
		zap.String("severity", string(alert.Severity)))
	return nil
}

func (n *NotificationService) NotifyIncident(ctx context.Context, incident model.Incident) error {
	logger.Info("NOTIFICATION: Incident update",
		zap.String("incidentID", incident.ID),
		zap.String("state", string(incident.State)),
		zap.String("severity", string(incident.Severity)))
	return nil
}

func (n *NotificationService) NotifyKillSwitch(ctx context.Context, action model.KillSwitchAction) error {
	logger.Info("NOTIFICATION: Kill switch engaged",
		zap.String("killSwitchID", action.ID),
		zap.String("targetType", string(action.TargetType)),
		zap.String("targetID", action.TargetID))
	return nil
}

func (n *NotificationService) NotifyPolicyChange(ctx context.Context, changeType string, policy model.Policy) error {
	logger.Info("NOTIFICATION: Policy "+changeType,
		zap.String("policyID", policy.ID),
		zap.String("policyName", policy.Name))
	return nil
}
