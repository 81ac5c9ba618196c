package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/api/handler"
	"github.com/qs3c/prodscope_tracker/internal/api/middleware"
)

type Router struct {
	jobHandler       *handler.JobHandler
	statusHandler    *handler.StatusHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	jobHandler *handler.JobHandler,
	statusHandler *handler.StatusHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		jobHandler:       jobHandler,
		statusHandler:    statusHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Serve)
		api.POST("/ws/ticket", r.websocketHandler.IssueTicket)

		// 任务
		jobs := api.Group("/jobs")
		{
			jobs.GET("", r.jobHandler.ListRecords)
			jobs.GET("/:id", r.jobHandler.GetJob)
			jobs.GET("/:id/record", r.jobHandler.GetRecord)
			jobs.POST("/:id/track", r.jobHandler.TrackJob)
			jobs.DELETE("/:id/track", r.jobHandler.UntrackJob)
		}

		// 平台总览
		status := api.Group("/status")
		{
			status.GET("", r.statusHandler.GetStatus)
			status.POST("/refresh", r.statusHandler.RefreshStatus)
		}
	}

	return engine
}
