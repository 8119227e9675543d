package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"truelink/downloader"
	"truelink/internal"
	"truelink/providers"
	"truelink/resolver"
	"truelink/utils"
)

// stubScraper resolves every URL with fn.
type stubScraper struct {
	name    string
	domains []string
	fn      func(ctx context.Context, rawURL string) (*internal.Result, error)
}

func (s stubScraper) Name() string      { return s.name }
func (s stubScraper) Domains() []string { return s.domains }
func (s stubScraper) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	return s.fn(ctx, rawURL)
}

// tokenScraper echoes its ndus parameter in the link.
type tokenScraper struct {
	stubScraper
}

func (t tokenScraper) ResolveWithParams(ctx context.Context, sess *utils.Session, rawURL string, params map[string]string) (*internal.Result, error) {
	return &internal.Result{
		Kind:      internal.KindFile,
		DirectURL: "https://cdn.example/file?ndus=" + params["ndus"],
		Filename:  "file.bin",
	}, nil
}

type testEnv struct {
	router   *gin.Engine
	upstream *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(cfg *internal.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/file.bin":
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Length", "12")
			io.WriteString(w, "hello, world")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	link := func(path string) func(context.Context, string) (*internal.Result, error) {
		return func(ctx context.Context, rawURL string) (*internal.Result, error) {
			return &internal.Result{Kind: internal.KindFile, DirectURL: upstream.URL + path}, nil
		}
	}
	scrapers := []providers.Scraper{
		stubScraper{"files", []string{"files.example"}, link("/file.bin")},
		stubScraper{"gone", []string{"gone.example"}, link("/missing")},
		stubScraper{"empty", []string{"empty.example"}, func(ctx context.Context, rawURL string) (*internal.Result, error) {
			return &internal.Result{Kind: internal.KindFile}, nil
		}},
		stubScraper{"broken", []string{"broken.example"}, func(ctx context.Context, rawURL string) (*internal.Result, error) {
			if strings.HasSuffix(rawURL, "/busy") {
				return nil, internal.NewUpstreamError("broken", "rate limited").WithRetryAfter(30)
			}
			return nil, internal.NewParseError("broken", "download button not found")
		}},
		stubScraper{"slow", []string{"slow.example"}, func(ctx context.Context, rawURL string) (*internal.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		tokenScraper{stubScraper{"terabox", []string{"terabox.example"}, link("/file.bin")}},
	}

	cfg := *internal.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	client := utils.NewHTTPClient()
	generic, err := resolver.NewGeneric(client, scrapers...)
	if err != nil {
		t.Fatalf("NewGeneric() error = %v", err)
	}
	pool := resolver.NewWorkerPool(cfg.WorkerPoolSize)
	t.Cleanup(pool.Shutdown)

	orch := resolver.NewOrchestrator(generic, pool, cfg)
	server := NewServer(orch, generic, downloader.NewStreamer(client, cfg.ChunkSize, nil), cfg)
	return &testEnv{router: server.Router(), upstream: upstream}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return body
}

func TestInfoEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/health = %d", w.Code)
	}
	health := decode(t, w)
	if health["status"] != "healthy" || health["supported_domains_count"] != float64(6) {
		t.Errorf("/health = %v", health)
	}

	w = env.do(http.MethodGet, "/supported-domains", "")
	domains := decode(t, w)
	list, _ := domains["domains"].([]interface{})
	if domains["count"] != float64(6) || len(list) != 6 || list[0] != "broken.example" {
		t.Errorf("/supported-domains = %v", domains)
	}

	for _, path := range []string{"/", "/help"} {
		if w := env.do(http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("%s = %d", path, w.Code)
		}
	}
	if w := env.do(http.MethodGet, "/health", ""); w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestResolve(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		query  string
		code   int
		detail string
	}{
		{"success", "url=https://files.example/f/1", http.StatusOK, ""},
		{"unsupported", "url=https://nowhere.example/f", http.StatusBadRequest, "unsupported domain: nowhere.example"},
		{"invalid_url", "url=notaurl", http.StatusBadRequest, "invalid URL"},
		{"scrape_error", "url=https://broken.example/f", http.StatusInternalServerError, "download button not found"},
		{"missing_url", "", http.StatusBadRequest, "url query parameter is required"},
		{"bad_timeout", "url=https://files.example/f&timeout=soon", http.StatusBadRequest, "invalid timeout"},
		{"bad_cache", "url=https://files.example/f&cache=maybe", http.StatusBadRequest, "invalid cache"},
		{"timeout", "url=https://slow.example/f&timeout=1", http.StatusRequestTimeout, "timed out after 1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/resolve?"+tt.query, "")
			if w.Code != tt.code {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tt.code, w.Body.String())
			}
			body := decode(t, w)
			if tt.code == http.StatusOK {
				if body["status"] != "success" || body["type"] != "file" {
					t.Errorf("body = %v", body)
				}
				data, _ := body["data"].(map[string]interface{})
				if data["provider"] != "files" {
					t.Errorf("data = %v", data)
				}
				return
			}
			detail, _ := body["detail"].(string)
			if !strings.Contains(detail, tt.detail) {
				t.Errorf("detail = %q, want it to contain %q", detail, tt.detail)
			}
		})
	}
}

func TestResolveBatch(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/resolve-batch",
		`{"urls": ["https://files.example/1", "https://nowhere.example/2", "https://broken.example/3"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", w.Code, w.Body.String())
	}
	var batch internal.BatchOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatal(err)
	}
	if batch.Count != 3 || batch.SuccessCount != 1 || batch.ErrorCount != 2 {
		t.Errorf("batch = %+v", batch)
	}
	wantStatus := []internal.Status{internal.StatusSuccess, internal.StatusUnsupported, internal.StatusError}
	for i, want := range wantStatus {
		if batch.Results[i].Status != want {
			t.Errorf("Results[%d].Status = %s, want %s", i, batch.Results[i].Status, want)
		}
	}

	urls := make([]string, 51)
	for i := range urls {
		urls[i] = fmt.Sprintf("%q", "https://files.example/x")
	}
	rejects := []struct {
		name string
		body string
	}{
		{"empty", `{"urls": []}`},
		{"too_many", `{"urls": [` + strings.Join(urls, ",") + `]}`},
		{"malformed", `{"urls": "https://files.example/x"`},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/resolve-batch", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if _, ok := decode(t, w)["detail"]; !ok {
				t.Error("missing detail")
			}
		})
	}
}

func TestDirectAndRedirect(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/direct?url=https://files.example/f", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/direct = %d", w.Code)
	}
	direct := decode(t, w)
	if direct["count"] != float64(1) {
		t.Errorf("/direct = %v", direct)
	}

	w = env.do(http.MethodGet, "/redirect?url=https://files.example/f", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != env.upstream.URL+"/file.bin" {
		t.Errorf("/redirect = %d %q", w.Code, w.Header().Get("Location"))
	}

	tests := []struct {
		path string
		code int
	}{
		{"/redirect?url=https://empty.example/f", http.StatusNotFound},
		{"/redirect?url=https://broken.example/f", http.StatusBadRequest},
		{"/redirect?url=https://nowhere.example/f", http.StatusBadRequest},
		{"/direct?url=https://broken.example/f", http.StatusInternalServerError},
		{"/direct?url=https://nowhere.example/f", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := env.do(http.MethodGet, tt.path, ""); w.Code != tt.code {
			t.Errorf("%s = %d, want %d", tt.path, w.Code, tt.code)
		}
	}
}

func TestDownloadStream(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/download-stream?url=https://files.example/f", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", w.Code, w.Body.String())
	}
	if w.Body.String() != "hello, world" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/zip" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}

	w = env.do(http.MethodGet, "/download-stream?url=https://gone.example/f", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Upstream server returned status 404") {
		t.Errorf("upstream 404 relayed as %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodGet, "/download-stream?url=https://empty.example/f", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "No direct download links found") {
		t.Errorf("no links = %d %s", w.Code, w.Body.String())
	}
}

func TestTerabox(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/terabox?url=https://terabox.example/s/1abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing ndus = %d", w.Code)
	}

	w = env.do(http.MethodGet, "/terabox?url=https://terabox.example/s/1abc&ndus=secret", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "success" || body["direct_url"] != "https://cdn.example/file?ndus=secret" {
		t.Errorf("body = %v", body)
	}
}

func TestBypass(t *testing.T) {
	env := newTestEnv(t, nil)

	list := decode(t, env.do(http.MethodGet, "/bypass", ""))
	if list["count"] != float64(6) {
		t.Errorf("/bypass = %v", list)
	}

	w := env.do(http.MethodGet, "/bypass/files?url=https://any.mirror.example/f", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", w.Code, w.Body.String())
	}
	ok := decode(t, w)
	if ok["success"] != true || ok["bypassed_url"] != env.upstream.URL+"/file.bin" {
		t.Errorf("body = %v", ok)
	}

	w = env.do(http.MethodGet, "/bypass/broken?url=https://broken.example/f", "")
	failed := decode(t, w)
	if w.Code != http.StatusBadGateway || failed["success"] != false || failed["stage"] != "parse" {
		t.Errorf("failure = %d %v", w.Code, failed)
	}
	if failed["retryable"] != false || w.Header().Get("Retry-After") != "" {
		t.Errorf("parse failure should not be retryable: %v", failed)
	}

	w = env.do(http.MethodGet, "/bypass/broken?url=https://broken.example/busy", "")
	busy := decode(t, w)
	if w.Code != http.StatusBadGateway || busy["stage"] != "upstream-logic" || busy["retryable"] != true {
		t.Errorf("rate-limited failure = %d %v", w.Code, busy)
	}
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}

	if w := env.do(http.MethodGet, "/bypass/nope?url=https://files.example/f", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown provider = %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/bypass/files?url=ftp://files.example/f", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid url = %d", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/resolve?url=https://files.example/f", "")

	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", w.Code)
	}
	text := w.Body.String()
	for _, want := range []string{
		`truelink_http_requests_total{endpoint="/resolve",method="GET",status_code="200"} 1`,
		`truelink_resolutions_total{status="success"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestTrustedHostsAndCORS(t *testing.T) {
	env := newTestEnv(t, func(cfg *internal.Config) {
		cfg.TrustedHosts = []string{"api.example", "*.truelink.example"}
	})

	tests := []struct {
		host string
		code int
	}{
		{"api.example", http.StatusOK},
		{"api.example:5000", http.StatusOK},
		{"eu.truelink.example", http.StatusOK},
		{"evil.example", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Host = tt.host
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Errorf("code = %d, want %d", w.Code, tt.code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodOptions, "/resolve", nil)
	req.Host = "api.example"
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}
}
