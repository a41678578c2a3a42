package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailtriage/pkg/otel"
	"mailtriage/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

// NewRouter wires the approval endpoints. When jwtSecret is set they
// require a bearer token whose role grants the endpoint's permission;
// health and metrics endpoints are always public.
// ready reports whether the poller has finished initializing; graphState,
// when set, is reported by /readyz as the Graph circuit breaker state.
func NewRouter(
	triageHandler *TriageHandler,
	ready func() bool,
	graphState func() string,
	jwtSecret string,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), otel.GinMiddleware())

	// Public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		body := gin.H{"status": "ready"}
		if graphState != nil {
			body["graph"] = graphState()
		}
		if ready != nil && !ready() {
			body["status"] = "starting"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	triage := r.Group("/")
	if jwtSecret == "" {
		triage.GET("/pending", triageHandler.ListPending)
		triage.POST("/approve", triageHandler.Approve)
		triage.POST("/reject", triageHandler.Reject)
		return &Router{Engine: r}
	}

	// Protected
	triage.Use(AuthMiddleware(jwtSecret))
	{
		triage.GET("/pending", RequirePermission(rbac.PermissionReadPending), triageHandler.ListPending)
		triage.POST("/approve", RequirePermission(rbac.PermissionApprove), triageHandler.Approve)
		triage.POST("/reject", RequirePermission(rbac.PermissionReject), triageHandler.Reject)
	}

	return &Router{Engine: r}
}
