package service

import (
	"context"
	"time"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/correlation"
	"github.com/hearthguard/sentinel/dao"
	"github.com/hearthguard/sentinel/incident"
	"github.com/hearthguard/sentinel/ingest"
	"github.com/hearthguard/sentinel/killswitch"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/override"
	"github.com/hearthguard/sentinel/pdp/engine"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/risk"
	"github.com/hearthguard/sentinel/util"
)

// Config collects the tunables the services need. Values come from the
// viper-backed config package; tests fill this struct directly.
type Config struct {
	Pipeline          ingest.Config
	Risk              risk.Config
	CorrelationRules  []correlation.Rule
	OverrideWindow    time.Duration
	OverrideThreshold int
}

// Services bundles every engine service behind one constructor so main and
// the router share a single wiring point.
type Services struct {
	Access      *AccessService
	Event       *EventService
	Incident    *IncidentService
	Override    *OverrideService
	KillSwitch  *KillSwitchService
	Dashboard   *DashboardService
	PolicyAdmin *PolicyAdminService
	Audit       audit.Service

	Store    *pdp_store.Store
	Registry *killswitch.Registry
}

func NewServices(cfg Config, store *pdp_store.Store, policyDAO *dao.PolicyDAO, auditService audit.Service, eventBus *util.EventBus) *Services {
	validation := util.NewValidationUtil()
	notification := util.NewNotificationService()
	cache := util.NewCacheService()

	registry := killswitch.NewRegistry()

	incidentService := NewIncidentService(incident.NewManager(), auditService, notification, eventBus)
	eventService := NewEventService(cfg.Pipeline, risk.NewScorer(cfg.Risk), correlation.NewEngine(cfg.CorrelationRules),
		incidentService, auditService, notification, eventBus)
	accessService := NewAccessService(store, engine.NewEvaluator(), auditService, cache, eventBus)
	overrideService := NewOverrideService(
		override.NewManager(override.Config{Window: cfg.OverrideWindow, EscalateThreshold: cfg.OverrideThreshold}),
		accessService, eventService, auditService, validation, eventBus)
	killSwitchService := NewKillSwitchService(killswitch.NewController(registry), auditService, notification, validation, eventBus)
	dashboardService := NewDashboardService(incidentService, eventService, store, cache)
	policyAdminService := NewPolicyAdminService(store, policyDAO, auditService, cache, validation, notification, eventBus)

	return &Services{
		Access:      accessService,
		Event:       eventService,
		Incident:    incidentService,
		Override:    overrideService,
		KillSwitch:  killSwitchService,
		Dashboard:   dashboardService,
		PolicyAdmin: policyAdminService,
		Audit:       auditService,
		Store:       store,
		Registry:    registry,
	}
}

// Start launches the ingest pipeline workers.
func (s *Services) Start(ctx context.Context) {
	s.Event.Start(ctx)
}

// Stop drains the pipeline. In-flight events finish before Stop returns.
func (s *Services) Stop() {
	s.Event.Stop()
}

// DefaultCorrelationRules mirrors the shipped rule set. Category "*" matches
// any event category.
func DefaultCorrelationRules(threshold int, window time.Duration) []correlation.Rule {
	return []correlation.Rule{
		{Name: "failed-auth-burst", Category: "failed_authentication", Threshold: threshold, Window: window, Severity: model.SeverityCritical},
		{Name: "permission-denied-burst", Category: "permission_denied", Threshold: threshold, Window: window, Severity: model.SeverityHigh},
		{Name: "network-anomaly-burst", Category: "network_anomaly", Threshold: threshold, Window: window, Severity: model.SeverityHigh},
	}
}
