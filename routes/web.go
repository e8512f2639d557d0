package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mn-address-parser/app/controllers"
)

// SetupWebRoutes registers the informational endpoints.
func SetupWebRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Mongolian Address Parser",
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"api": "Mongolian Address Parser API v1",
				"endpoints": map[string]string{
					"parse":       "POST /v1/addresses/parse",
					"jobs":        "POST /v1/addresses/jobs",
					"job_status":  "GET /v1/addresses/jobs/:jobID/status",
					"job_results": "GET /v1/addresses/jobs/:jobID/results?format=ndjson&gzip=1",
					"compare":     "POST /v1/addresses/compare",
					"districts":   "GET /v1/districts",
					"suggest":     "GET /v1/districts/suggest?q=",
					"stats":       "GET /v1/admin/stats",
					"health":      "GET /v1/health",
				},
			})
		})

		web.GET("/status", addressController.HealthCheck)
	}
}
