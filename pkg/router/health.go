package router

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// setupHealthRoutes registers the operational health endpoints.
// /api/health is the client-facing contract and lives with the API handlers.
func (r *Router) setupHealthRoutes() {
	r.Engine.GET("/healthz", gin.WrapF(r.Container.Health.HTTPHandler()))

	r.Engine.GET("/debug/runtime", func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(200, gin.H{
			"env":            r.Config.Server.Env,
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	})
}
