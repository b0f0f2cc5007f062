package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthCheckTimeout bounds each dependency ping during readiness checks.
const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes. Liveness always
// answers; readiness pings every registered dependency.
type HealthHandler struct {
	checkNames []string
	checks     map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]HealthCheck),
	}
}

// AddCheck registers a named dependency check for the readiness probe.
// Checks run in registration order.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) *HealthHandler {
	if _, exists := h.checks[name]; !exists {
		h.checkNames = append(h.checkNames, name)
	}
	h.checks[name] = check
	return h
}

// RegisterRoutes registers the probe routes on the engine root, outside the
// versioned API group
func (h *HealthHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", h.Live)
	engine.GET("/readyz", h.Ready)
}

// Live answers the liveness probe.
// GET /healthz
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready answers the readiness probe, pinging each registered dependency.
// GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	type checkResult struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	results := make([]checkResult, 0, len(h.checkNames))
	healthy := true

	for _, name := range h.checkNames {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := h.checks[name](ctx)
		cancel()

		result := checkResult{Name: name, Status: "ok"}
		if err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			healthy = false
		}
		results = append(results, result)
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}
