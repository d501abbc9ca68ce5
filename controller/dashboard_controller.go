package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthguard/sentinel/service"
)

type DashboardController struct {
	dashboardService service.IDashboardService
}

func NewDashboardController(dashboardService service.IDashboardService) *DashboardController {
	return &DashboardController{
		dashboardService: dashboardService,
	}
}

// RegisterRoutes registers the API routes
func (dc *DashboardController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", dc.GetDashboard)
}

// GetDashboard endpoint
func (dc *DashboardController) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, dc.dashboardService.Snapshot(c))
}
