package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"truelink/downloader"
	"truelink/internal"
	"truelink/resolver"
)

// downloadStreamTimeout is the default resolution timeout of /download-stream.
const downloadStreamTimeout = 60 * time.Second

func fail(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}

// statusCode maps a non-success outcome to its HTTP status.
func statusCode(s internal.Status) int {
	switch s {
	case internal.StatusSuccess:
		return http.StatusOK
	case internal.StatusUnsupported:
		return http.StatusBadRequest
	case internal.StatusTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestFromQuery reads timeout, retries and cache into a request for url.
// Out-of-range numbers are clamped; unparsable ones are rejected.
func (s *Server) requestFromQuery(c *gin.Context, rawURL string, defaultTimeout time.Duration) (internal.ResolutionRequest, error) {
	req := s.orch.NewRequest(rawURL)
	req.Timeout = defaultTimeout

	if v := c.Query("timeout"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid timeout %q", v)
		}
		req.Timeout = s.orch.ClampTimeout(time.Duration(secs) * time.Second)
	}
	if v := c.Query("retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid retries %q", v)
		}
		req.MaxRetries = n
	}
	if v := c.Query("cache"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid cache %q", v)
		}
		req.UseCache = b
	}
	return req, nil
}

// singleRequest reads the url query parameter plus the common options.
func (s *Server) singleRequest(c *gin.Context, defaultTimeout time.Duration) (internal.ResolutionRequest, bool) {
	rawURL := c.Query("url")
	if rawURL == "" {
		fail(c, http.StatusBadRequest, "url query parameter is required")
		return internal.ResolutionRequest{}, false
	}
	req, err := s.requestFromQuery(c, rawURL, defaultTimeout)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to TrueLink API " + Version,
		"help":    "/help",
		"health":  "/health",
		"metrics": "/metrics",
		"features": []string{
			"Single and batch URL resolution",
			"Direct link extraction",
			"Streaming downloads",
			"Terabox support",
			"Per-provider bypass",
		},
	})
}

func (s *Server) help(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api":         "TrueLink API " + Version,
		"description": "Resolves file-host, video-host and shortener URLs to direct download links",
		"endpoints": gin.H{
			"/health":            "Service status",
			"/resolve":           "Resolve a single URL (url, timeout, retries, cache)",
			"/resolve-batch":     "Resolve several URLs concurrently (POST {\"urls\": [...]})",
			"/supported-domains": "List supported domains",
			"/direct":            "Direct download links found for a URL",
			"/redirect":          "Redirect to the first direct link",
			"/download-stream":   "Stream the first direct link through this server",
			"/terabox":           "Resolve a Terabox share with an ndus cookie",
			"/bypass":            "List providers usable with /bypass/{provider}",
			"/bypass/{provider}": "Run one provider on a URL, skipping domain dispatch",
			"/metrics":           "Prometheus metrics",
			"/help":              "This page",
		},
		"limits": gin.H{
			"max_batch_size":   s.cfg.MaxBatchSize,
			"default_timeout":  s.cfg.DefaultTimeout,
			"max_timeout":      s.cfg.MaxTimeout,
			"concurrent_limit": s.cfg.ConcurrentLimit,
			"max_retries":      internal.MaxRetries,
		},
		"configuration": gin.H{
			"cors_enabled": s.cfg.EnableCORS,
			"log_level":    s.cfg.LogLevel,
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                  "healthy",
		"version":                 Version,
		"uptime":                  internal.Seconds(time.Since(s.started)),
		"supported_domains_count": len(s.orch.Resolver().SupportedDomains()),
	})
}

func (s *Server) supportedDomains(c *gin.Context) {
	domains := s.orch.Resolver().SupportedDomains()
	c.JSON(http.StatusOK, gin.H{
		"count":        len(domains),
		"domains":      domains,
		"last_updated": float64(time.Now().UnixMilli()) / 1000,
	})
}

func (s *Server) resolve(c *gin.Context) {
	req, ok := s.singleRequest(c, s.cfg.DefaultTimeoutDuration())
	if !ok {
		return
	}
	out := s.orch.ResolveSingle(c.Request.Context(), req)
	s.metrics.observeOutcome(out)

	if out.Status != internal.StatusSuccess {
		fail(c, statusCode(out.Status), out.Message)
		return
	}
	c.JSON(http.StatusOK, out)
}

type batchBody struct {
	URLs []string `json:"urls"`
}

func (s *Server) resolveBatch(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tmpl, err := s.requestFromQuery(c, "", s.cfg.DefaultTimeoutDuration())
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.orch.ResolveBatch(c.Request.Context(), body.URLs, tmpl)
	if err != nil {
		var verr *internal.ValidationError
		if errors.As(err, &verr) {
			internal.LogValidationError(verr)
			fail(c, http.StatusBadRequest, verr.Message)
			return
		}
		fail(c, http.StatusInternalServerError, "batch processing failed: "+err.Error())
		return
	}
	for _, out := range batch.Results {
		s.metrics.observeOutcome(out)
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) direct(c *gin.Context) {
	req, ok := s.singleRequest(c, s.cfg.DefaultTimeoutDuration())
	if !ok {
		return
	}
	links, out := s.orch.DirectLinks(c.Request.Context(), req)
	s.metrics.observeOutcome(out)

	if out.Status != internal.StatusSuccess {
		fail(c, statusCode(out.Status), out.Message)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (s *Server) redirect(c *gin.Context) {
	req, ok := s.singleRequest(c, s.cfg.DefaultTimeoutDuration())
	if !ok {
		return
	}
	links, out := s.orch.DirectLinks(c.Request.Context(), req)
	s.metrics.observeOutcome(out)

	if out.Status != internal.StatusSuccess {
		msg := out.Message
		if msg == "" {
			msg = "Failed to resolve URL"
		}
		fail(c, http.StatusBadRequest, msg)
		return
	}
	if links.Count == 0 {
		fail(c, http.StatusNotFound, "No direct download links found")
		return
	}
	internal.LogInfo("redirecting %s to %s", req.URL, links.DirectLinks[0])
	c.Redirect(http.StatusFound, links.DirectLinks[0])
}

func (s *Server) downloadStream(c *gin.Context) {
	req, ok := s.singleRequest(c, s.orch.ClampTimeout(downloadStreamTimeout))
	if !ok {
		return
	}
	links, out := s.orch.DirectLinks(c.Request.Context(), req)
	s.metrics.observeOutcome(out)
	if links.Count == 0 {
		fail(c, http.StatusNotFound, "No direct download links found")
		return
	}

	target := links.DirectLinks[0]
	stream, err := s.streamer.Open(c.Request.Context(), target)
	if err != nil {
		if se, ok := downloader.AsUpstreamStatus(err); ok {
			fail(c, se.StatusCode, fmt.Sprintf("Upstream server returned status %d", se.StatusCode))
			return
		}
		fail(c, http.StatusInternalServerError, "Streaming failed: "+internal.RedactURLs(err.Error()))
		return
	}
	defer stream.Close()

	for k, v := range stream.Headers() {
		c.Header(k, v)
	}
	c.Status(http.StatusOK)

	internal.LogInfo("streaming %s", target)
	n, err := stream.CopyTo(c.Writer, s.metrics.addStreamed)
	switch {
	case errors.Is(err, context.Canceled):
		internal.LogWarn("client disconnected after %d bytes of %s", n, target)
	case err != nil:
		internal.LogError("streaming %s failed after %d bytes: %v", target, n, err)
	default:
		internal.LogDebug("streamed %d bytes of %s", n, target)
	}
}

func (s *Server) terabox(c *gin.Context) {
	rawURL := c.Query("url")
	ndus := c.Query("ndus")
	if rawURL == "" {
		fail(c, http.StatusBadRequest, "url query parameter is required")
		return
	}
	if ndus == "" {
		fail(c, http.StatusBadRequest, "NDUS cookie value is required")
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.DefaultTimeoutDuration())
	defer cancel()

	res, err := s.bypass.Bypass(ctx, "terabox", rawURL, internal.ResolveOptions{
		Retries:  s.cfg.DefaultRetries,
		UseCache: true,
		Params:   map[string]string{"ndus": ndus},
	})
	if err != nil {
		if internal.IsUnsupported(err) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		internal.LogWarn("terabox resolution of %s failed: %v", rawURL, err)
		c.JSON(http.StatusOK, gin.H{
			"status":          "error",
			"message":         internal.RedactURLs(err.Error()),
			"processing_time": internal.Seconds(time.Since(start)),
		})
		return
	}

	body := gin.H{"status": "success", "processing_time": internal.Seconds(time.Since(start))}
	for k, v := range res.Payload() {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listBypass(c *gin.Context) {
	providers := s.bypass.Providers()
	c.JSON(http.StatusOK, gin.H{"count": len(providers), "providers": providers})
}

func (s *Server) runBypass(c *gin.Context) {
	name := strings.ToLower(c.Param("provider"))
	if !knownProvider(s.bypass.Providers(), name) {
		fail(c, http.StatusNotFound, "unknown provider: "+name)
		return
	}
	req, ok := s.singleRequest(c, s.cfg.DefaultTimeoutDuration())
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), req.Timeout)
	defer cancel()

	res, err := s.bypass.Bypass(ctx, name, req.URL, internal.ResolveOptions{
		Retries:  resolver.ClampRetries(req.MaxRetries),
		UseCache: req.UseCache,
	})
	if err != nil {
		if internal.IsUnsupported(err) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		body := gin.H{"success": false, "message": internal.RedactURLs(err.Error())}
		if f, ok := internal.AsScrapeFailure(err); ok {
			body["stage"] = f.Stage.String()
			body["retryable"] = f.IsRetryable()
			if f.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(f.RetryAfter))
			}
			internal.LogScrapeFailure(f)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			body["stage"] = "timeout"
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"bypassed_url": res.DirectURL,
		"data":         res.Payload(),
	})
}

func knownProvider(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
