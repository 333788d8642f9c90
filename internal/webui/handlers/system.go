package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SystemInfo is the non-secret runtime description exposed to the frontend.
type SystemInfo struct {
	Version     string            `json:"version"`
	Bundled     bool              `json:"bundled"`
	DataDir     string            `json:"data_dir"`
	StorePath   string            `json:"store_path"`
	ConfigFile  string            `json:"config_file"`
	AssetsDir   string            `json:"assets_dir"`
	Pending     []string          `json:"pending_settings,omitempty"`
	Degraded    map[string]string `json:"degraded,omitempty"` // stage name -> failure
	ListenAddr  string            `json:"listen_addr"`
	BrowserURL  string            `json:"browser_url"`
	MetricsPath string            `json:"metrics_path,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Degraded  map[string]string `json:"degraded,omitempty"`
}

// SystemHandler serves launcher status endpoints.
type SystemHandler struct {
	info      SystemInfo
	startTime time.Time
	now       func() time.Time
}

// NewSystemHandler creates a handler reporting info.
func NewSystemHandler(info SystemInfo) *SystemHandler {
	return &SystemHandler{info: info, startTime: time.Now(), now: time.Now}
}

// Register mounts the handler's routes on the API group.
func (h *SystemHandler) Register(api *gin.RouterGroup) {
	api.GET("/health", h.Health)
	api.GET("/system/paths", h.Paths)
}

// Health reports liveness. A degraded launcher still answers with status
// "degraded" and the reason each optional startup stage failed.
func (h *SystemHandler) Health(c *gin.Context) {
	status := "ok"
	if len(h.info.Degraded) > 0 {
		status = "degraded"
	}
	now := h.now()
	OK(c, HealthResponse{
		Status:    status,
		Version:   h.info.Version,
		Timestamp: now,
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
		Degraded:  h.info.Degraded,
	})
}

// Paths reports where settings and data live so the UI can show the user.
func (h *SystemHandler) Paths(c *gin.Context) {
	OK(c, h.info)
}
