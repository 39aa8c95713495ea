package app

import (
	"github.com/gin-gonic/gin"

	"uxpulse/api/handlers"
	"uxpulse/api/middleware"
)

// NewRouter builds the full API route tree over the bootstrapped stores.
// Auth endpoints are public; everything else sits behind AuthRequired.
func NewRouter(a *App) *gin.Engine {
	authHandlers := handlers.NewAuthHandlers(a.Users)
	versionHandlers := handlers.NewVersionHandlers(a.Versions, a.Events, a.Stats, a.Runner)
	funnelHandlers := handlers.NewFunnelHandlers(a.Versions, a.Funnels, a.Runner)
	issueHandlers := handlers.NewIssueHandlers(a.Versions, a.Issues, a.Pages, a.Runner)
	pageHandlers := handlers.NewPageHandlers(a.Versions, a.Pages, a.Cohorts)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.POST("/ingest", versionHandlers.Ingest)
			protected.GET("/compare", issueHandlers.CompareVersions)
			protected.GET("/issues/history", issueHandlers.GetIssueHistory)

			versions := protected.Group("/versions")
			{
				versions.GET("", versionHandlers.ListVersions)
				versions.GET("/:versionId", versionHandlers.GetVersion)
				versions.GET("/:versionId/daily-stats", versionHandlers.GetDailyStats)
				versions.GET("/:versionId/session-counts", versionHandlers.GetSessionCounts)
				versions.GET("/:versionId/unique-visitors", versionHandlers.GetUniqueVisitors)
				versions.GET("/:versionId/top-urls", versionHandlers.GetTopURLs)
				versions.GET("/:versionId/top-paths", funnelHandlers.GetTopPaths)

				versions.GET("/:versionId/funnels", funnelHandlers.ListFunnels)
				versions.POST("/:versionId/funnels", funnelHandlers.CreateFunnel)
				versions.POST("/:versionId/funnels/discover", funnelHandlers.Discover)
				versions.POST("/:versionId/funnels/calculate", funnelHandlers.Calculate)

				versions.GET("/:versionId/issues", issueHandlers.ListIssues)
				versions.GET("/:versionId/lifecycles", issueHandlers.ListLifecycles)
				versions.POST("/:versionId/analyze", issueHandlers.RunAnalysis)
				versions.POST("/:versionId/hypotheses/refresh", funnelHandlers.RefreshHypotheses)

				versions.GET("/:versionId/pages", pageHandlers.ListPageMetrics)
				versions.GET("/:versionId/cohorts", pageHandlers.ListCohorts)
				versions.PUT("/:versionId/cohorts", pageHandlers.ReplaceCohorts)
			}
		}
	}
	return r
}
