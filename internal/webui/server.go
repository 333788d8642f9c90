// Package webui composes the HTTP application: API modules under a common
// prefix, the ambient middleware chain and the single-page frontend.
package webui

import (
	"io/fs"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"aipolish/internal/infra/observability"
	"aipolish/internal/shared/logging"
	"aipolish/internal/webui/middleware"
)

const (
	// DefaultAPIPrefix groups every API route.
	DefaultAPIPrefix = "/api"
	// MetricsRoute is mounted under the API prefix when metrics are enabled.
	MetricsRoute = "/metrics"
)

// APIModule registers a group of API routes.
type APIModule interface {
	Register(api *gin.RouterGroup)
}

// APIModuleFunc adapts a function to APIModule.
type APIModuleFunc func(api *gin.RouterGroup)

func (f APIModuleFunc) Register(api *gin.RouterGroup) { f(api) }

// Config controls engine composition.
type Config struct {
	APIPrefix string
	// Development enables CORS for a separately served frontend dev server.
	Development    bool
	AllowedOrigins []string
	RateLimit      middleware.RateLimitConfig
	Metrics        *observability.HTTPMetrics
	Logger         logging.Logger
}

// NewEngine builds the application handler. API modules are registered
// first and the assets fill the fallback slot, so every API route keeps
// precedence over the SPA.
func NewEngine(cfg Config, assets fs.FS, modules ...APIModule) (*gin.Engine, error) {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	prefix := normalizePrefix(cfg.APIPrefix)
	isAPIPath := func(p string) bool {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logging.OrNop(cfg.Logger)))
	if cfg.Metrics != nil {
		engine.Use(middleware.Metrics(cfg.Metrics, isAPIPath))
	}
	if cfg.Development {
		corsConfig := cors.DefaultConfig()
		if len(cfg.AllowedOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.AllowedOrigins
		} else {
			corsConfig.AllowAllOrigins = true
		}
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
		corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
		engine.Use(cors.New(corsConfig))
	}

	api := engine.Group(prefix)
	api.Use(middleware.RateLimit(cfg.RateLimit))
	api.Use(middleware.JSONMiddleware())
	if cfg.Metrics != nil {
		api.GET(MetricsRoute, gin.WrapH(cfg.Metrics.Handler()))
	}
	for _, module := range modules {
		if module == nil {
			continue
		}
		module.Register(api)
	}

	if err := MountAssets(engine, assets, AssetOptions{APIPrefix: prefix}); err != nil {
		return nil, err
	}
	return engine, nil
}
