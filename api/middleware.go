package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"truelink/internal"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := internal.LogLevelInfo
		switch {
		case status >= 500:
			level = internal.LogLevelError
		case status >= 400:
			level = internal.LogLevelWarn
		}
		internal.GetLogger().Fields(level, "request", map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
	}
}

// Recovery turns a handler panic into a 500 with the usual error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		internal.LogError("panic serving %s: %v", c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	})
}

// CORS allows any origin when enabled.
func CORS(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Expose-Headers", requestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// TrustedHosts rejects requests whose Host header matches none of hosts.
// "*" allows everything and "*.example.com" allows subdomains.
func TrustedHosts(hosts []string) gin.HandlerFunc {
	allowAll := len(hosts) == 0
	for _, h := range hosts {
		if h == "*" {
			allowAll = true
		}
	}
	return func(c *gin.Context) {
		if allowAll || hostAllowed(c.Request.Host, hosts) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Invalid host header"})
	}
}

func hostAllowed(host string, hosts []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	for _, pattern := range hosts {
		pattern = strings.ToLower(pattern)
		if strings.HasPrefix(pattern, "*.") {
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}
