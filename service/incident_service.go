package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthguard/sentinel/audit"
	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/incident"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/metrics"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/util"
)

type IIncidentService interface {
	OpenManual(ctx context.Context, actor, title string, severity model.Severity, eventIDs []string) (model.Incident, error)
	Get(id string) (model.Incident, error)
	List(states ...model.IncidentState) []model.Incident
	Transition(ctx context.Context, id string, version int, to model.IncidentState, note string, falsePositive bool, actor string) (model.Incident, error)
	TransitionWithRetry(ctx context.Context, id string, to model.IncidentState, note string, falsePositive bool, actor string) (model.Incident, error)
}

// IncidentService wraps the incident state machine with auditing and
// notifications. State changes are audited before they commit; an audit
// failure leaves the incident untouched.
type IncidentService struct {
	manager             *incident.Manager
	auditService        audit.Service
	notificationService *util.NotificationService
	eventBus            *util.EventBus
	maxRetries          int
	retryBackoff        time.Duration
}

func NewIncidentService(
	manager *incident.Manager,
	auditService audit.Service,
	notificationService *util.NotificationService,
	eventBus *util.EventBus,
) *IncidentService {
	return &IncidentService{
		manager:             manager,
		auditService:        auditService,
		notificationService: notificationService,
		eventBus:            eventBus,
		maxRetries:          3,
		retryBackoff:        10 * time.Millisecond,
	}
}

func (s *IncidentService) OpenManual(ctx context.Context, actor, title string, severity model.Severity, eventIDs []string) (model.Incident, error) {
	if title == "" {
		return model.Incident{}, fmt.Errorf("%w: title is required", sentinel_errors.ErrInvalidTransition)
	}
	if !severity.Valid() {
		severity = model.SeverityMedium
	}
	return s.open(ctx, model.Incident{
		Title:    title,
		Severity: severity,
		EventIDs: eventIDs,
		OpenedBy: actor,
	})
}

// OpenFromAlert opens an incident for a critical correlation alert.
func (s *IncidentService) OpenFromAlert(ctx context.Context, alert model.Alert) (model.Incident, error) {
	return s.open(ctx, model.Incident{
		Title:    fmt.Sprintf("Alert %s: %s", alert.Rule, alert.Message),
		Severity: alert.Severity,
		AlertIDs: []string{alert.ID},
		EventIDs: alert.EventIDs,
		OpenedBy: "system",
	})
}

// OpenFromScore opens an incident for an event scored into the critical band.
func (s *IncidentService) OpenFromScore(ctx context.Context, event model.SecurityEvent, score model.RiskScore) (model.Incident, error) {
	return s.open(ctx, model.Incident{
		Title:    fmt.Sprintf("Critical risk event from %s (score %.0f)", event.Source, score.Score),
		Severity: model.SeverityCritical,
		EventIDs: []string{event.ID},
		OpenedBy: "system",
	})
}

func (s *IncidentService) open(ctx context.Context, inc model.Incident) (model.Incident, error) {
	opened, err := s.manager.Open(inc, func(updated model.Incident) error {
		_, auditErr := s.auditService.Append(ctx, audit.RecordIncidentOpened, updated.OpenedBy, updated)
		return auditErr
	})
	if err != nil {
		return model.Incident{}, err
	}
	metrics.IncidentsOpened.Inc()
	if notifyErr := s.notificationService.NotifyIncident(ctx, opened); notifyErr != nil {
		logger.Warn("Incident notification failed", zap.Error(notifyErr), zap.String("incidentID", opened.ID))
	}
	s.eventBus.Publish(ctx, util.TopicIncidentOpened, opened)
	return opened, nil
}

func (s *IncidentService) Get(id string) (model.Incident, error) {
	return s.manager.Get(id)
}

func (s *IncidentService) List(states ...model.IncidentState) []model.Incident {
	return s.manager.List(states...)
}

func (s *IncidentService) Transition(ctx context.Context, id string, version int, to model.IncidentState, note string, falsePositive bool, actor string) (model.Incident, error) {
	updated, err := s.manager.Transition(id, version, to, note, falsePositive, actor, func(inc model.Incident) error {
		type transitionRecord struct {
			Incident model.Incident      `json:"incident"`
			To       model.IncidentState `json:"to"`
			Actor    string              `json:"actor"`
			Note     string              `json:"note,omitempty"`
		}
		_, auditErr := s.auditService.Append(ctx, audit.RecordIncidentTransition, actor, transitionRecord{
			Incident: inc, To: to, Actor: actor, Note: note,
		})
		return auditErr
	})
	if err != nil {
		return model.Incident{}, err
	}
	s.eventBus.Publish(ctx, util.TopicIncidentTransitioned, updated)
	return updated, nil
}

// TransitionWithRetry re-reads the incident and retries on version conflicts,
// for callers that do not carry their own read version.
func (s *IncidentService) TransitionWithRetry(ctx context.Context, id string, to model.IncidentState, note string, falsePositive bool, actor string) (model.Incident, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		current, err := s.manager.Get(id)
		if err != nil {
			return model.Incident{}, err
		}
		updated, err := s.Transition(ctx, id, current.Version, to, note, falsePositive, actor)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, sentinel_errors.ErrIncidentVersionConflict) {
			return model.Incident{}, err
		}
		lastErr = err
		time.Sleep(s.retryBackoff * time.Duration(attempt+1))
	}
	return model.Incident{}, lastErr
}
