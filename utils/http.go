package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"truelink/internal"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterPercent float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}
}

// HTTPClientConfig contains configuration for the HTTP client
type HTTPClientConfig struct {
	Timeout     time.Duration
	ProxyURL    string
	PoolSize    int
	UserAgents  []string
	RetryConfig *RetryConfig
	Limiter     *HostLimiter
}

// HTTPClient owns the pooled transport shared by every resolution. Cookie
// state never lives here; each resolution gets its own Session.
type HTTPClient struct {
	transport    *http.Transport
	timeout      time.Duration
	userAgent    string
	userAgents   []string
	userAgentIdx int
	mutex        sync.RWMutex
	retryConfig  *RetryConfig
	limiter      *HostLimiter
}

// Predefined user agent strings for rotation
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// NewHTTPClient creates a new HTTP client with default configuration
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(&HTTPClientConfig{
		Timeout:     30 * time.Second,
		RetryConfig: DefaultRetryConfig(),
	})
}

// NewHTTPClientWithConfig creates a new HTTP client with custom configuration
func NewHTTPClientWithConfig(config *HTTPClientConfig) *HTTPClient {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig()
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 100
	}
	agents := config.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          poolSize,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
	}

	if config.ProxyURL != "" {
		if err := configureProxy(transport, config.ProxyURL); err != nil {
			internal.LogWarn("Failed to configure proxy %s: %v", config.ProxyURL, err)
		}
	}

	return &HTTPClient{
		transport:   transport,
		timeout:     config.Timeout,
		userAgents:  agents,
		userAgent:   agents[0],
		retryConfig: config.RetryConfig,
		limiter:     config.Limiter,
	}
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsedURL.User != nil {
			password, _ := parsedURL.User.Password()
			auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}

// Stream opens a GET request whose body is left to the caller. There is no
// client timeout; the context bounds the transfer.
func (c *HTTPClient) Stream(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.GetCurrentUserAgent())
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL.Hostname()); err != nil {
			return nil, err
		}
	}

	internal.GetLogger().LogHTTPRequest(req)
	client := &http.Client{Transport: c.transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	internal.GetLogger().LogHTTPResponse(resp)
	return resp, nil
}

// RotateUserAgent rotates to the next user agent string
func (c *HTTPClient) RotateUserAgent() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.userAgentIdx = (c.userAgentIdx + 1) % len(c.userAgents)
	c.userAgent = c.userAgents[c.userAgentIdx]
}

// GetCurrentUserAgent returns the current user agent string
func (c *HTTPClient) GetCurrentUserAgent() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.userAgent
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(cfg *RetryConfig, attempt int) time.Duration {
	// Exponential backoff: baseDelay * multiplier^(attempt-1)
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))

	jitter := delay * cfg.JitterPercent * (rand.Float64()*2 - 1)
	delay += jitter

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if delay < 0 {
		delay = float64(cfg.BaseDelay)
	}

	return time.Duration(delay)
}

// isRetryableError determines if a transport error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"eof",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}

	return false
}

// isRetryableStatus reports whether a response status is worth another attempt.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
