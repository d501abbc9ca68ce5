package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/util"
)

type IDashboardService interface {
	Snapshot(ctx context.Context) Dashboard
}

// Dashboard is a point-in-time summary of the engine's security posture.
type Dashboard struct {
	OpenIncidents    []model.Incident       `json:"open_incidents"`
	ActiveAlerts     []model.Alert          `json:"active_alerts"`
	RiskDistribution map[model.RiskBand]int `json:"risk_distribution"`
	DroppedEvents    uint64                 `json:"dropped_events"`
	SnapshotVersion  uint64                 `json:"policy_snapshot_version"`
	GeneratedAt      time.Time              `json:"generated_at"`
}

type DashboardService struct {
	incidentService *IncidentService
	eventService    *EventService
	store           *pdp_store.Store
	cacheService    *util.CacheService
}

func NewDashboardService(
	incidentService *IncidentService,
	eventService *EventService,
	store *pdp_store.Store,
	cacheService *util.CacheService,
) *DashboardService {
	return &DashboardService{
		incidentService: incidentService,
		eventService:    eventService,
		store:           store,
		cacheService:    cacheService,
	}
}

func (s *DashboardService) Snapshot(ctx context.Context) Dashboard {
	dashboard := Dashboard{
		OpenIncidents:    s.incidentService.List(model.IncidentOpen, model.IncidentInvestigating),
		ActiveAlerts:     s.eventService.ActiveAlerts(),
		RiskDistribution: s.eventService.RiskDistribution(),
		DroppedEvents:    s.eventService.DroppedCount(),
		SnapshotVersion:  s.store.Current().Version,
		GeneratedAt:      time.Now().UTC(),
	}
	if err := s.cacheService.SetDashboard(ctx, dashboard); err != nil {
		logger.Warn("Failed to cache dashboard", zap.Error(err))
	}
	return dashboard
}
