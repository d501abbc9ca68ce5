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

type KillSwitchController struct {
	killSwitchService service.IKillSwitchService
}

func NewKillSwitchController(killSwitchService service.IKillSwitchService) *KillSwitchController {
	return &KillSwitchController{
		killSwitchService: killSwitchService,
	}
}

// RegisterRoutes registers the API routes
func (kc *KillSwitchController) RegisterRoutes(r *gin.RouterGroup) {
	killswitch := r.Group("/killswitch")
	{
		killswitch.POST("", kc.Activate)
		killswitch.GET("", kc.ListActions)
		killswitch.GET("/:id", kc.GetAction)
	}
}

type killSwitchRequest struct {
	TargetType model.TargetType `json:"target_type" binding:"required"`
	TargetID   string           `json:"target_id" binding:"required"`
	Reason     string           `json:"reason" binding:"required"`
}

// Activate terminates a registered target. Activating an already-terminated
// target returns the existing action.
func (kc *KillSwitchController) Activate(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid kill switch request", err)
		return
	}
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	action, err := kc.killSwitchService.Activate(c, req.TargetType, req.TargetID, req.Reason, principalID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel_errors.ErrKillSwitchTargetNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Target not found", err)
		case errors.Is(err, sentinel_errors.ErrInvalidTargetType):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid target type", err)
		case errors.Is(err, sentinel_errors.ErrAuditWriteFailed):
			util.RespondWithError(c, http.StatusServiceUnavailable, "Audit log unavailable", err)
		default:
			// terminate callback failed; the action stays in terminating
			c.JSON(http.StatusInternalServerError, gin.H{"action": action, "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, action)
}

// ListActions endpoint
func (kc *KillSwitchController) ListActions(c *gin.Context) {
	c.JSON(http.StatusOK, kc.killSwitchService.List())
}

// GetAction endpoint
func (kc *KillSwitchController) GetAction(c *gin.Context) {
	action, err := kc.killSwitchService.Get(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Kill switch action not found", sentinel_errors.ErrKillSwitchNotFound)
		return
	}
	c.JSON(http.StatusOK, action)
}
