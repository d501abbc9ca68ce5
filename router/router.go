package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthguard/sentinel/controller"
	"github.com/hearthguard/sentinel/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	controllers.Access.RegisterRoutes(api)
	controllers.Event.RegisterRoutes(api)
	controllers.Incident.RegisterRoutes(api)
	controllers.Override.RegisterRoutes(api)
	controllers.KillSwitch.RegisterRoutes(api)
	controllers.Audit.RegisterRoutes(api)
	controllers.Dashboard.RegisterRoutes(api)
	controllers.Policy.RegisterRoutes(api)

	return router
}
