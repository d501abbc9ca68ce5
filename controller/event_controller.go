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

type EventController struct {
	eventService service.IEventService
}

func NewEventController(eventService service.IEventService) *EventController {
	return &EventController{
		eventService: eventService,
	}
}

// RegisterRoutes registers the API routes
func (ec *EventController) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/events")
	{
		events.POST("", ec.SubmitEvent)
		events.GET("/:id", ec.GetEvent)
		events.GET("/:id/score", ec.GetScore)
	}
	alerts := r.Group("/alerts")
	{
		alerts.GET("", ec.ListAlerts)
		alerts.POST("/:id/ack", ec.AcknowledgeAlert)
	}
}

type submitEventRequest struct {
	Source      string            `json:"source"`
	Category    string            `json:"category"`
	Severity    model.Severity    `json:"severity"`
	PrincipalID string            `json:"principal_id"`
	Details     map[string]string `json:"details"`
}

// SubmitEvent accepts a security event for asynchronous processing.
func (ec *EventController) SubmitEvent(c *gin.Context) {
	var req submitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid event data", sentinel_errors.ErrEventValidation)
		return
	}

	event, err := ec.eventService.SubmitEvent(c, req.Source, req.Category, req.Severity, req.PrincipalID, req.Details)
	if err != nil {
		if errors.Is(err, sentinel_errors.ErrEventValidation) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid event data", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to submit event", sentinel_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": event.ID})
}

// GetEvent endpoint
func (ec *EventController) GetEvent(c *gin.Context) {
	event, err := ec.eventService.Event(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Event not found", sentinel_errors.ErrEventNotFound)
		return
	}
	c.JSON(http.StatusOK, event)
}

// GetScore returns the risk score computed for an event, once processed.
func (ec *EventController) GetScore(c *gin.Context) {
	score, err := ec.eventService.Score(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Score not found", sentinel_errors.ErrEventNotFound)
		return
	}
	c.JSON(http.StatusOK, score)
}

// ListAlerts returns unacknowledged alerts.
func (ec *EventController) ListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, ec.eventService.ActiveAlerts())
}

// AcknowledgeAlert endpoint
func (ec *EventController) AcknowledgeAlert(c *gin.Context) {
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	alert, err := ec.eventService.AcknowledgeAlert(c, c.Param("id"), principalID)
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Alert not found", sentinel_errors.ErrAlertNotFound)
		return
	}
	c.JSON(http.StatusOK, alert)
}
