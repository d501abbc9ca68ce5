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

type AccessController struct {
	accessService service.IAccessService
}

func NewAccessController(accessService service.IAccessService) *AccessController {
	return &AccessController{
		accessService: accessService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AccessController) RegisterRoutes(r *gin.RouterGroup) {
	access := r.Group("/access")
	{
		access.POST("/evaluate", ac.EvaluateAccess)
	}
}

type evaluateRequest struct {
	PrincipalID string              `json:"principal_id" binding:"required"`
	Resource    string              `json:"resource" binding:"required"`
	Action      string              `json:"action" binding:"required"`
	Context     model.AccessContext `json:"context"`
}

// EvaluateAccess endpoint
func (ac *AccessController) EvaluateAccess(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access request", err)
		return
	}

	decision, trace, err := ac.accessService.EvaluateAccess(c, req.PrincipalID, req.Resource, req.Action, req.Context)
	if err != nil {
		if errors.Is(err, sentinel_errors.ErrAuditWriteFailed) {
			// the deny still stands; report it with the audit failure flagged
			c.JSON(http.StatusOK, gin.H{
				"decision":     decision,
				"trace":        trace,
				"audit_failed": true,
			})
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to evaluate access", sentinel_errors.ErrInternalServer)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decision": decision,
		"trace":    trace,
	})
}
