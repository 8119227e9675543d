// Package api exposes the resolver over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"truelink/downloader"
	"truelink/internal"
	"truelink/resolver"
)

// Version is reported by / and /health.
const Version = "1.0.0"

// Bypasser runs a named provider directly.
type Bypasser interface {
	Bypass(ctx context.Context, name, rawURL string, opts internal.ResolveOptions) (*internal.Result, error)
	Providers() []string
}

// Server carries the dependencies of every handler.
type Server struct {
	orch     *resolver.Orchestrator
	bypass   Bypasser
	streamer *downloader.Streamer
	cfg      internal.Config
	metrics  *Metrics
	started  time.Time
}

// NewServer builds a server. cfg is copied.
func NewServer(orch *resolver.Orchestrator, bypass Bypasser, streamer *downloader.Streamer, cfg internal.Config) *Server {
	return &Server{
		orch:     orch,
		bypass:   bypass,
		streamer: streamer,
		cfg:      cfg,
		metrics:  NewMetrics(),
		started:  time.Now(),
	}
}

// Router wires middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(s.metrics.Middleware())
	router.Use(TrustedHosts(s.cfg.TrustedHosts))
	router.Use(CORS(s.cfg.EnableCORS))

	router.GET("/", s.root)
	router.GET("/help", s.help)
	router.GET("/health", s.health)
	router.GET("/supported-domains", s.supportedDomains)
	router.GET("/metrics", s.metrics.Handler())

	router.GET("/resolve", s.resolve)
	router.POST("/resolve-batch", s.resolveBatch)
	router.GET("/direct", s.direct)
	router.GET("/redirect", s.redirect)
	router.GET("/download-stream", s.downloadStream)
	router.GET("/terabox", s.terabox)

	bypass := router.Group("/bypass")
	{
		bypass.GET("", s.listBypass)
		bypass.GET("/:provider", s.runBypass)
	}

	return router
}
