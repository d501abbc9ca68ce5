package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthguard/sentinel/audit"
	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/util"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	auditGroup := r.Group("/audit")
	{
		auditGroup.GET("/export", ac.Export)
		auditGroup.GET("/verify", ac.Verify)
	}
}

// Export streams audit records matching the query filters.
// Supported params: start, end (RFC3339), principal, type (repeatable).
func (ac *AuditController) Export(c *gin.Context) {
	var filter audit.Filter
	if raw := c.Query("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid start time", err)
			return
		}
		filter.Start = start
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid end time", err)
			return
		}
		filter.End = end
	}
	filter.PrincipalID = c.Query("principal")
	for _, t := range c.QueryArray("type") {
		filter.Types = append(filter.Types, audit.RecordType(t))
	}

	records, err := ac.auditService.Export(c, filter)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to export audit records", sentinel_errors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Verify walks the hash chain and reports the first broken link, if any.
func (ac *AuditController) Verify(c *gin.Context) {
	result, err := ac.auditService.Verify(c)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to verify audit chain", sentinel_errors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, result)
}
