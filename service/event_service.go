package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/correlation"
	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/ingest"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/metrics"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/risk"
	"github.com/hearthguard/sentinel/util"
)

type IEventService interface {
	SubmitEvent(ctx context.Context, source, category string, severity model.Severity, principalID string, details map[string]string) (model.SecurityEvent, error)
	Event(id string) (model.SecurityEvent, error)
	Score(eventID string) (model.RiskScore, error)
	ActiveAlerts() []model.Alert
	AcknowledgeAlert(ctx context.Context, id, by string) (model.Alert, error)
	RiskDistribution() map[model.RiskBand]int
	DroppedCount() uint64
}

type bandSample struct {
	band model.RiskBand
	at   time.Time
}

// EventService runs the ingest pipeline: every accepted event is scored,
// fed to the correlation engine, and recorded in the audit trail. Critical
// outcomes open incidents automatically.
type EventService struct {
	ingestor            *ingest.Ingestor
	scorer              *risk.Scorer
	correlator          *correlation.Engine
	incidentService     *IncidentService
	auditService        audit.Service
	notificationService *util.NotificationService
	eventBus            *util.EventBus

	mu                 sync.RWMutex
	scores             map[string]model.RiskScore
	alerts             map[string]*model.Alert
	alertOrder         []string
	bandSamples        []bandSample
	distributionWindow time.Duration
}

func NewEventService(
	pipelineCfg ingest.Config,
	scorer *risk.Scorer,
	correlator *correlation.Engine,
	incidentService *IncidentService,
	auditService audit.Service,
	notificationService *util.NotificationService,
	eventBus *util.EventBus,
) *EventService {
	s := &EventService{
		scorer:              scorer,
		correlator:          correlator,
		incidentService:     incidentService,
		auditService:        auditService,
		notificationService: notificationService,
		eventBus:            eventBus,
		scores:              make(map[string]model.RiskScore),
		alerts:              make(map[string]*model.Alert),
		distributionWindow:  time.Hour,
	}
	s.ingestor = ingest.NewIngestor(pipelineCfg, s.process, s.onDropBurst)
	return s
}

func (s *EventService) Start(ctx context.Context) { s.ingestor.Start(ctx) }
func (s *EventService) Stop()                     { s.ingestor.Stop() }

func (s *EventService) SubmitEvent(ctx context.Context, source, category string, severity model.Severity, principalID string, details map[string]string) (model.SecurityEvent, error) {
	return s.ingestor.Submit(ctx, source, category, severity, principalID, details)
}

func (s *EventService) Event(id string) (model.SecurityEvent, error) {
	event, ok := s.ingestor.Event(id)
	if !ok {
		return model.SecurityEvent{}, sentinel_errors.ErrEventNotFound
	}
	return event, nil
}

func (s *EventService) Score(eventID string) (model.RiskScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[eventID]
	if !ok {
		return model.RiskScore{}, sentinel_errors.ErrEventNotFound
	}
	return score, nil
}

// process is the pipeline worker body. It runs on the ingestor's worker
// goroutines, one event at a time per worker.
func (s *EventService) process(ctx context.Context, event model.SecurityEvent) {
	score := s.scorer.Score(event)
	metrics.RiskScores.Observe(score.Score)

	s.mu.Lock()
	s.scores[event.ID] = score
	s.recordBandLocked(score.Band, event.Timestamp)
	s.mu.Unlock()

	type scoredEvent struct {
		Event model.SecurityEvent `json:"event"`
		Score model.RiskScore     `json:"score"`
	}
	if _, err := s.auditService.Append(ctx, audit.RecordSecurityEvent, event.PrincipalID, scoredEvent{Event: event, Score: score}); err != nil {
		logger.Error("Failed to audit security event", zap.Error(err), zap.String("eventID", event.ID))
	}

	if score.Score >= s.scorer.AutoBlockThreshold() && event.Source != "" {
		s.scorer.BlockSource(event.Source)
		logger.Warn("Source auto-blocked",
			zap.String("source", event.Source),
			zap.Float64("score", score.Score))
	}
	s.eventBus.Publish(ctx, util.TopicEventScored, score)

	if threshold := s.scorer.EscalateThreshold(); threshold > 0 && score.Score >= threshold {
		s.RaiseAlert(ctx, model.Alert{
			ID:        uuid.New().String(),
			Rule:      "risk-escalation",
			Source:    event.Source,
			EventIDs:  []string{event.ID},
			Severity:  model.SeverityHigh,
			Message:   fmt.Sprintf("risk score %.0f from %s at or above the escalation threshold", score.Score, event.Source),
			CreatedAt: time.Now().UTC(),
		})
	}

	if score.Band == model.BandCritical {
		if _, err := s.incidentService.OpenFromScore(ctx, event, score); err != nil {
			logger.Error("Failed to open incident for critical event", zap.Error(err), zap.String("eventID", event.ID))
		}
	}

	for _, alert := range s.correlator.Observe(event) {
		s.RaiseAlert(ctx, alert)
	}
}

// RaiseAlert registers an alert, notifies, and opens an incident when the
// alert severity is critical.
func (s *EventService) RaiseAlert(ctx context.Context, alert model.Alert) {
	s.mu.Lock()
	stored := alert
	s.alerts[alert.ID] = &stored
	s.alertOrder = append(s.alertOrder, alert.ID)
	s.mu.Unlock()

	metrics.AlertsRaised.WithLabelValues(alert.Rule).Inc()
	if err := s.notificationService.NotifyAlert(ctx, alert); err != nil {
		logger.Warn("Alert notification failed", zap.Error(err), zap.String("alertID", alert.ID))
	}
	s.eventBus.Publish(ctx, util.TopicAlertRaised, alert)

	if alert.Severity == model.SeverityCritical {
		if _, err := s.incidentService.OpenFromAlert(ctx, alert); err != nil {
			logger.Error("Failed to open incident for alert", zap.Error(err), zap.String("alertID", alert.ID))
		}
	}
}

func (s *EventService) AcknowledgeAlert(ctx context.Context, id, by string) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return model.Alert{}, sentinel_errors.ErrAlertNotFound
	}
	if !alert.Acknowledged {
		now := time.Now().UTC()
		alert.Acknowledged = true
		alert.AcknowledgedBy = by
		alert.AcknowledgedAt = &now
	}
	return *alert, nil
}

// ActiveAlerts returns unacknowledged alerts, newest first.
func (s *EventService) ActiveAlerts() []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0)
	for i := len(s.alertOrder) - 1; i >= 0; i-- {
		if alert, ok := s.alerts[s.alertOrder[i]]; ok && !alert.Acknowledged {
			out = append(out, *alert)
		}
	}
	return out
}

// RiskDistribution counts scored events per band over the last hour.
func (s *EventService) RiskDistribution() map[model.RiskBand]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneBandsLocked(time.Now().UTC())
	dist := map[model.RiskBand]int{
		model.BandLow:      0,
		model.BandMedium:   0,
		model.BandHigh:     0,
		model.BandCritical: 0,
	}
	for _, sample := range s.bandSamples {
		dist[sample.band]++
	}
	return dist
}

func (s *EventService) DroppedCount() uint64 {
	return s.ingestor.DroppedCount()
}

func (s *EventService) recordBandLocked(band model.RiskBand, at time.Time) {
	s.bandSamples = append(s.bandSamples, bandSample{band: band, at: at})
	s.pruneBandsLocked(time.Now().UTC())
}

func (s *EventService) pruneBandsLocked(now time.Time) {
	cutoff := now.Add(-s.distributionWindow)
	idx := 0
	for idx < len(s.bandSamples) && s.bandSamples[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		s.bandSamples = s.bandSamples[idx:]
	}
}

// onDropBurst fires when the ingest queue sheds more events than the
// configured threshold inside the rolling window.
func (s *EventService) onDropBurst(droppedInWindow int) {
	alert := model.Alert{
		ID:        uuid.New().String(),
		Rule:      "event-drop-rate",
		Severity:  model.SeverityHigh,
		Message:   fmt.Sprintf("ingest queue dropped %d events in the alert window", droppedInWindow),
		CreatedAt: time.Now().UTC(),
	}
	s.RaiseAlert(context.Background(), alert)
	s.eventBus.Publish(context.Background(), util.TopicPipelineDrops, droppedInWindow)
}
