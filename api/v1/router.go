package v1

import (
	"net/http"

	"go_domainlink/api/v1/linking"
	"go_domainlink/api/v1/middleware"
	"go_domainlink/internal/httpx"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps holds what the HTTP surface serves
type RouterDeps struct {
	Linking  linking.Service
	Socket   http.Handler
	Gatherer prometheus.Gatherer
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, deps RouterDeps) {
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.Socket != nil {
		r.Any("/socket.io/*any", gin.WrapH(deps.Socket))
	}

	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", meHandler)

			linking.NewHandler(deps.Linking).Register(protected.Group("/linking"))
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns the authenticated user id
func meHandler(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	httpx.OK(c, gin.H{
		"uid": uid,
	})
}
