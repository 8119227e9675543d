package utils

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"truelink/internal"
)

// maxBodySize bounds how much of a page is buffered.
const maxBodySize = 16 << 20

// RequestOptions tweaks a single request.
type RequestOptions struct {
	Headers    map[string]string
	Cookies    map[string]string
	NoRedirect bool
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        *url.URL
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON parses the body with gjson. An invalid body yields an empty result.
func (r *Response) JSON() gjson.Result {
	if !gjson.ValidBytes(r.Body) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// ValidJSON reports whether the body is a JSON document.
func (r *Response) ValidJSON() bool {
	return gjson.ValidBytes(r.Body)
}

// Document parses the body as HTML.
func (r *Response) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
}

// Location returns the redirect target, resolved against the request URL.
func (r *Response) Location() string {
	loc := r.Header.Get("Location")
	if loc == "" || r.URL == nil {
		return loc
	}
	if u, err := r.URL.Parse(loc); err == nil {
		return u.String()
	}
	return loc
}

// StatusError is returned by CheckStatus for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, internal.RedactURLs(e.URL))
}

// CheckStatus returns a *StatusError unless the status is 2xx.
func (r *Response) CheckStatus() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	u := ""
	if r.URL != nil {
		u = r.URL.String()
	}
	return &StatusError{Code: r.StatusCode, URL: u}
}

// Session is a cookie-carrying client scoped to one resolution. It shares
// the parent's transport but never its cookies. A Session is safe for
// concurrent use by the goroutines of one resolution.
type Session struct {
	parent    *HTTPClient
	jar       *cookiejar.Jar
	follow    *http.Client
	noFollow  *http.Client
	retry     RetryConfig
	uaMu      sync.RWMutex
	userAgent string
}

// NewSession creates a session allowed retries+1 attempts per request.
func (c *HTTPClient) NewSession(retries int) *Session {
	if retries < 0 {
		retries = 0
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	retry := *c.retryConfig
	retry.MaxAttempts = retries + 1

	return &Session{
		parent: c,
		jar:    jar,
		follow: &http.Client{
			Transport: c.transport,
			Jar:       jar,
			Timeout:   c.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		noFollow: &http.Client{
			Transport: c.transport,
			Jar:       jar,
			Timeout:   c.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: c.GetCurrentUserAgent(),
		retry:     retry,
	}
}

// SetCookie stores a cookie for the host of rawURL.
func (s *Session) SetCookie(rawURL, name, value string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	s.jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) map[string]string {
	out := map[string]string{}
	u, err := url.Parse(rawURL)
	if err != nil {
		return out
	}
	for _, c := range s.jar.Cookies(u) {
		out[c.Name] = c.Value
	}
	return out
}

// UserAgent returns the user agent this session sends.
func (s *Session) UserAgent() string {
	s.uaMu.RLock()
	defer s.uaMu.RUnlock()
	return s.userAgent
}

// rotateUserAgent moves the session to the client's next user agent.
func (s *Session) rotateUserAgent() {
	s.parent.RotateUserAgent()
	s.uaMu.Lock()
	s.userAgent = s.parent.GetCurrentUserAgent()
	s.uaMu.Unlock()
}

// Get performs a GET request
func (s *Session) Get(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return s.Do(ctx, http.MethodGet, rawURL, "", nil, opts)
}

// Head performs a HEAD request
func (s *Session) Head(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return s.Do(ctx, http.MethodHead, rawURL, "", nil, opts)
}

// PostForm posts url-encoded form values
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values, opts *RequestOptions) (*Response, error) {
	return s.Do(ctx, http.MethodPost, rawURL, "application/x-www-form-urlencoded", []byte(form.Encode()), opts)
}

// PostJSON posts v encoded as JSON
func (s *Session) PostJSON(ctx context.Context, rawURL string, v interface{}, opts *RequestOptions) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return s.Do(ctx, http.MethodPost, rawURL, "application/json", body, opts)
}

// Post posts a raw body with the given content type
func (s *Session) Post(ctx context.Context, rawURL, contentType string, body []byte, opts *RequestOptions) (*Response, error) {
	return s.Do(ctx, http.MethodPost, rawURL, contentType, body, opts)
}

// Do executes a request with retry logic. Transport errors, 429 and 5xx are
// retried with exponential backoff; any other status is returned as-is.
func (s *Session) Do(ctx context.Context, method, rawURL, contentType string, body []byte, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	client := s.follow
	if opts.NoRedirect {
		client = s.noFollow
	}

	var lastErr error
	var lastResp *Response

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := calculateDelay(&s.retry, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := s.once(ctx, client, method, rawURL, contentType, body, opts)
		if err != nil {
			lastErr = err
			if !isRetryableError(err) {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusForbidden && attempt == 0 && s.retry.MaxAttempts > 1 {
			s.rotateUserAgent()
			lastResp = resp
			continue
		}
		if isRetryableStatus(resp.StatusCode) {
			lastResp = resp
			continue
		}
		return resp, nil
	}

	if lastResp != nil {
		return lastResp, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", s.retry.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("request failed after %d attempts", s.retry.MaxAttempts)
}

func (s *Session) once(ctx context.Context, client *http.Client, method, rawURL, contentType string, body []byte, opts *RequestOptions) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	for name, value := range opts.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	if s.parent.limiter != nil {
		if err := s.parent.limiter.Wait(ctx, req.URL.Hostname()); err != nil {
			return nil, err
		}
	}

	logger := internal.GetLogger()
	logger.LogHTTPRequest(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	logger.LogHTTPResponse(resp)

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL,
		Body:       data,
	}, nil
}

// readBody decodes gzip, deflate and brotli bodies.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close()
		r = fr
	}
	return io.ReadAll(io.LimitReader(r, maxBodySize))
}
