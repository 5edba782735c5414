// Package handlers holds the gin handlers of the quote API and of the
// internal /-/ probe group.
package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/qotd/internal/ports"
)

// BuildInfo is served by GET /-/build. The fields come from -ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills GoVersion from the running binary.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime, GoVersion: runtime.Version()}
}

// HealthHandler answers the probes under /-/.
type HealthHandler struct {
	registry ports.HealthRegistry
	build    BuildInfo
}

func NewHealthHandler(registry ports.HealthRegistry, build BuildInfo) *HealthHandler {
	return &HealthHandler{registry: registry, build: build}
}

// RegisterHealthRoutes mounts live, ready, build and metrics on rg.
func (h *HealthHandler) RegisterHealthRoutes(rg *gin.RouterGroup) {
	rg.Use(noStore)
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.BuildInfoHandler)
	rg.GET("/metrics", gin.WrapH(MetricsHandler()))
}

// Liveness answers 200 while the process can serve HTTP at all.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness runs every registered check. Any failure makes it 503 with the
// failing check's message in the body.
func (h *HealthHandler) Readiness(c *gin.Context) {
	res := h.registry.CheckAll(c.Request.Context())

	code := http.StatusOK
	if res.Status != ports.HealthStatusHealthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, struct {
		Status ports.HealthStatus            `json:"status"`
		Checks map[string]*ports.CheckResult `json:"checks,omitempty"`
	}{res.Status, res.Checks})
}

func (h *HealthHandler) BuildInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// noStore keeps proxies from caching probe answers.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Next()
}
