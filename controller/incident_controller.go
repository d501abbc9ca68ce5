package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/service"
	"github.com/hearthguard/sentinel/util"
)

type IncidentController struct {
	incidentService service.IIncidentService
}

func NewIncidentController(incidentService service.IIncidentService) *IncidentController {
	return &IncidentController{
		incidentService: incidentService,
	}
}

// RegisterRoutes registers the API routes
func (ic *IncidentController) RegisterRoutes(r *gin.RouterGroup) {
	incidents := r.Group("/incidents")
	{
		incidents.POST("", ic.OpenIncident)
		incidents.GET("", ic.ListIncidents)
		incidents.GET("/:id", ic.GetIncident)
		incidents.POST("/:id/transitions", ic.TransitionIncident)
	}
}

type openIncidentRequest struct {
	Title    string         `json:"title" binding:"required"`
	Severity model.Severity `json:"severity"`
	EventIDs []string       `json:"event_ids"`
}

// OpenIncident endpoint
func (ic *IncidentController) OpenIncident(c *gin.Context) {
	var req openIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid incident data", err)
		return
	}
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	incident, err := ic.incidentService.OpenManual(c, principalID, req.Title, req.Severity, req.EventIDs)
	if err != nil {
		if errors.Is(err, sentinel_errors.ErrAuditWriteFailed) {
			util.RespondWithError(c, http.StatusServiceUnavailable, "Audit log unavailable", err)
			return
		}
		util.RespondWithError(c, http.StatusBadRequest, "Failed to open incident", err)
		return
	}
	c.JSON(http.StatusCreated, incident)
}

// ListIncidents returns incidents, optionally filtered by ?state=open,investigating
func (ic *IncidentController) ListIncidents(c *gin.Context) {
	var states []model.IncidentState
	if raw, ok := c.GetQuery("state"); ok && raw != "" {
		for _, s := range splitCSV(raw) {
			states = append(states, model.IncidentState(s))
		}
	}
	c.JSON(http.StatusOK, ic.incidentService.List(states...))
}

// GetIncident endpoint
func (ic *IncidentController) GetIncident(c *gin.Context) {
	incident, err := ic.incidentService.Get(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Incident not found", sentinel_errors.ErrIncidentNotFound)
		return
	}
	c.JSON(http.StatusOK, incident)
}

type transitionRequest struct {
	Version       int                 `json:"version" binding:"required"`
	To            model.IncidentState `json:"to" binding:"required"`
	Note          string              `json:"note"`
	FalsePositive bool                `json:"false_positive"`
}

// TransitionIncident moves an incident through its lifecycle. The caller
// supplies the version it read; a stale version gets 409.
func (ic *IncidentController) TransitionIncident(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid transition data", err)
		return
	}
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	incident, err := ic.incidentService.Transition(c, c.Param("id"), req.Version, req.To, req.Note, req.FalsePositive, principalID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel_errors.ErrIncidentNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Incident not found", err)
		case errors.Is(err, sentinel_errors.ErrIncidentVersionConflict):
			util.RespondWithError(c, http.StatusConflict, "Incident was modified concurrently", err)
		case errors.Is(err, sentinel_errors.ErrAuditWriteFailed):
			util.RespondWithError(c, http.StatusServiceUnavailable, "Audit log unavailable", err)
		default:
			util.RespondWithError(c, http.StatusBadRequest, "Invalid transition", err)
		}
		return
	}
	c.JSON(http.StatusOK, incident)
}
