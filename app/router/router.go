package router

import (
	"gridpool/app/handler"
	"gridpool/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	scalerHandler   *handler.ScalerHandler
	clusterHandler  *handler.ClusterHandler
	eventsHandler   *handler.EventsHandler
	capacityHandler *handler.CapacityHandler
}

// NewRouter creates a new Router
func NewRouter(scalerHandler *handler.ScalerHandler, clusterHandler *handler.ClusterHandler, eventsHandler *handler.EventsHandler, capacityHandler *handler.CapacityHandler) *Router {
	return &Router{
		scalerHandler:   scalerHandler,
		clusterHandler:  clusterHandler,
		eventsHandler:   eventsHandler,
		capacityHandler: capacityHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	api := engine.Group("/api/v1")
	{
		// Scaler status and control
		scaler := api.Group("/scaler")
		{
			scaler.GET("/status", r.scalerHandler.GetStatus)
			scaler.GET("/config", r.scalerHandler.GetConfig)

			// Mutating routes require the API key when one is configured
			control := scaler.Group("")
			control.Use(middleware.AuthMiddleware())
			{
				control.POST("/trigger", r.scalerHandler.Trigger)
				control.POST("/pause", r.scalerHandler.Pause)
				control.POST("/resume", r.scalerHandler.Resume)
			}
		}

		// Live cluster views
		cluster := api.Group("/cluster")
		{
			cluster.GET("/nodes", r.clusterHandler.GetNodes)
			cluster.GET("/jobs", r.clusterHandler.GetJobs)
			cluster.GET("/metrics", r.clusterHandler.GetMetrics)
		}

		// Scale event history and live feed
		events := api.Group("/events")
		{
			events.GET("", r.eventsHandler.List)
			events.GET("/live", r.eventsHandler.Live)
		}

		// Spot capacity advisories (when the advisor is enabled)
		if r.capacityHandler != nil {
			api.GET("/capacity", r.capacityHandler.GetAdvisories)
		}
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
