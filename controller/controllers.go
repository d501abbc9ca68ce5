package controller

import (
	"github.com/hearthguard/sentinel/service"
)

// Controllers groups the HTTP controllers for route registration.
type Controllers struct {
	Access     *AccessController
	Event      *EventController
	Incident   *IncidentController
	Override   *OverrideController
	KillSwitch *KillSwitchController
	Audit      *AuditController
	Dashboard  *DashboardController
	Policy     *PolicyController
}

func NewControllers(services *service.Services) *Controllers {
	return &Controllers{
		Access:     NewAccessController(services.Access),
		Event:      NewEventController(services.Event),
		Incident:   NewIncidentController(services.Incident),
		Override:   NewOverrideController(services.Override),
		KillSwitch: NewKillSwitchController(services.KillSwitch),
		Audit:      NewAuditController(services.Audit),
		Dashboard:  NewDashboardController(services.Dashboard),
		Policy:     NewPolicyController(services.PolicyAdmin),
	}
}
