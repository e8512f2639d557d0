package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mn-address-parser/app/controllers"
)

// SetupAPIRoutes registers the /v1 API. middleware runs for /v1 only.
func SetupAPIRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController, middleware ...gin.HandlerFunc) {
	v1 := router.Group("/v1", middleware...)
	{
		addresses := v1.Group("/addresses")
		{
			addresses.POST("/parse", addressController.ParseAddress)
			addresses.POST("/jobs", addressController.BatchParse)
			addresses.GET("/jobs/:jobID/status", addressController.GetJobStatus)
			addresses.GET("/jobs/:jobID/results", addressController.GetJobResults)
			addresses.POST("/compare", addressController.Compare)
		}

		districts := v1.Group("/districts")
		{
			districts.GET("", adminController.ListDistricts)
			districts.GET("/suggest", addressController.SuggestDistricts)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/seed", adminController.SeedGazetteer)
			admin.POST("/meili/synonyms/rebuild", adminController.RebuildSynonyms)
			admin.POST("/aliases", adminController.AddLearnedAlias)
			admin.POST("/cache/invalidate", adminController.InvalidateCache)
			admin.GET("/stats", adminController.GetStats)
			admin.POST("/indexes/build", adminController.BuildIndexes)
			admin.GET("/export/:type", adminController.ExportData)
			admin.GET("/reviews", adminController.ListReviews)
			admin.POST("/reviews/:id/approve", adminController.ApproveReview)
			admin.POST("/reviews/:id/correct", adminController.CorrectReview)
		}
	}
}

// SetupHealthRoutes registers the health checks.
func SetupHealthRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	router.GET("/health", addressController.HealthCheck)
	router.GET("/ready", addressController.HealthCheck)
	router.GET("/live", addressController.HealthCheck)
	router.GET("/v1/health", addressController.HealthCheck)
}

// SetupMetricsRoutes registers /metrics.
func SetupMetricsRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	router.GET("/metrics", addressController.Metrics)
}

// SetupAllRoutes registers middleware and every route. apiMiddleware, such
// as RateLimit, wraps the /v1 API but not the health checks.
func SetupAllRoutes(router *gin.Engine, addressController *controllers.AddressController, adminController *controllers.AdminController, apiMiddleware ...gin.HandlerFunc) {
	setupMiddleware(router)

	SetupWebRoutes(router, addressController)
	SetupHealthRoutes(router, addressController)
	SetupAPIRoutes(router, addressController, adminController, apiMiddleware...)
	SetupMetricsRoutes(router, addressController)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "ROUTE_NOT_FOUND",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

func setupMiddleware(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
}
