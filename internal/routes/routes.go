package routes

import (
	"log/slog"
	"net/http"

	"agile-tracker-api/internal/config"
	"agile-tracker-api/internal/handlers"
	"agile-tracker-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(h *handlers.Handler, cfg config.ServerConfig, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.RequestLogger(logger))
	ginRouter.Use(middleware.CORS(cfg.CORSOrigin))

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Agile tracker API is running",
		})
	})

	api := ginRouter.Group("/api")
	if cfg.DevLogin {
		api.POST("/login", h.Login)
	}

	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(h.Issuer))

	project := protectedRoutes.Group("/projects/:projectId")
	{
		// Backlog
		project.GET("/backlog", h.ListBacklog)
		project.POST("/backlog", h.CreateBacklogItem)
		project.POST("/backlog/convert/:activityId", h.ConvertActivity)
		project.GET("/backlog/:id", h.GetBacklogItem)
		project.PUT("/backlog/:id", h.UpdateBacklogItem)
		project.DELETE("/backlog/:id", h.DeleteBacklogItem)
		project.GET("/backlog/:id/children", h.ListChildren)
		project.PUT("/backlog/:id/classify", h.ClassifyBacklogItem)
		project.GET("/eisenhower", h.GetEisenhowerMatrix)

		// Sprints and board
		project.GET("/sprints", h.ListSprints)
		project.POST("/sprints", h.CreateSprint)
		project.GET("/sprints/:id", h.GetSprint)
		project.POST("/sprints/:id/start", h.StartSprint)
		project.POST("/sprints/:id/close", h.CloseSprint)
		project.POST("/sprints/:id/items", h.AddSprintItems)
		project.DELETE("/sprints/:id/items/:itemId", h.RemoveSprintItem)
		project.PATCH("/sprints/:id/items/:itemId/status", h.UpdateBoardStatus)
		project.POST("/sprints/:id/carry-over", h.CarryOver)
		project.GET("/sprints/:id/board", h.GetBoard)

		// Impediments
		project.GET("/impediments", h.ListImpediments)
		project.POST("/impediments", h.CreateImpediment)
		project.GET("/impediments/:id", h.GetImpediment)
		project.POST("/impediments/:id/resolve", h.ResolveImpediment)
		project.PATCH("/impediments/:id/status", h.UpdateImpedimentStatus)

		project.GET("/dashboard", h.GetDashboard)
		project.GET("/ws", h.ProjectFeed)
	}

	return ginRouter
}
