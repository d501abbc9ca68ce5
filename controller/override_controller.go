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

type OverrideController struct {
	overrideService service.IOverrideService
}

func NewOverrideController(overrideService service.IOverrideService) *OverrideController {
	return &OverrideController{
		overrideService: overrideService,
	}
}

// RegisterRoutes registers the API routes
func (oc *OverrideController) RegisterRoutes(r *gin.RouterGroup) {
	overrides := r.Group("/overrides")
	{
		overrides.POST("", oc.RecordOverride)
		overrides.GET("/:id", oc.GetOverride)
	}
}

type overrideRequest struct {
	DecisionID  string           `json:"decision_id" binding:"required"`
	Reason      model.ReasonCode `json:"reason" binding:"required"`
	Explanation string           `json:"explanation"`
}

// RecordOverride endpoint
func (oc *OverrideController) RecordOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid override data", err)
		return
	}
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	override, err := oc.overrideService.RecordOverride(c, principalID, req.DecisionID, req.Reason, req.Explanation)
	if err != nil {
		switch {
		case errors.Is(err, sentinel_errors.ErrDecisionNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Decision not found", err)
		case errors.Is(err, sentinel_errors.ErrInvalidReasonCode),
			errors.Is(err, sentinel_errors.ErrExplanationRequired):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid override data", err)
		case errors.Is(err, sentinel_errors.ErrAuditWriteFailed):
			util.RespondWithError(c, http.StatusServiceUnavailable, "Audit log unavailable", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to record override", sentinel_errors.ErrInternalServer)
		}
		return
	}
	c.JSON(http.StatusCreated, override)
}

// GetOverride endpoint
func (oc *OverrideController) GetOverride(c *gin.Context) {
	override, err := oc.overrideService.Get(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Override not found", sentinel_errors.ErrOverrideNotFound)
		return
	}
	c.JSON(http.StatusOK, override)
}
