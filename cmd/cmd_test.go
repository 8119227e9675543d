package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"truelink/downloader"
	"truelink/internal"
	"truelink/utils"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, cookiesPath, proxyURL, logLevel, logFile = "", "", "", "", ""
	debug, quiet = false, false
	resolveTimeout, resolveRetries, resolveDirect = 0, -1, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadConfiguration_Layers(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "truelink.toml")
	if err := os.WriteFile(configFile, []byte(`
max_batch_size = 10
default_timeout = 30

[credentials]
gdtot_crypt = "from-file"
`), 0644); err != nil {
		t.Fatal(err)
	}
	cookieFile := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(cookieFile, []byte(".katdrive.org\tTRUE\t/\tFALSE\t0\tcrypt\tkat-cookie\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEFAULT_TIMEOUT", "40")

	out, err := executeRoot(t, "--config", configFile, "--cookies", cookieFile, "--log-level", "ERROR", "domains")
	if err != nil {
		t.Fatalf("domains failed: %v", err)
	}

	if config.MaxBatchSize != 10 {
		t.Errorf("MaxBatchSize = %d, want 10 from file", config.MaxBatchSize)
	}
	if config.DefaultTimeout != 40 {
		t.Errorf("DefaultTimeout = %d, want env to override file", config.DefaultTimeout)
	}
	if config.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want flag value", config.LogLevel)
	}
	if config.Credentials.GDTOTCrypt != "from-file" || config.Credentials.KatDriveCrypt != "kat-cookie" {
		t.Errorf("Credentials = %+v", config.Credentials)
	}
	if !strings.Contains(out, "mediafire.com\n") || !strings.Contains(out, "sharer.pw\n") {
		t.Errorf("domains output missing entries: %q", out)
	}
}

func TestLoadConfiguration_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad_proxy", []string{"--proxy", "ftp://proxy:21", "domains"}, nil},
		{"missing_config", []string{"--config", "/nonexistent/truelink.toml", "domains"}, nil},
		{"timeout_order", []string{"domains"}, map[string]string{"DEFAULT_TIMEOUT": "200", "MAX_TIMEOUT": "100"}},
		{"missing_cookies", []string{"--cookies", "/nonexistent/cookies.txt", "domains"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := executeRoot(t, tt.args...); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestResolveCommand_Unsupported(t *testing.T) {
	out, err := executeRoot(t, "--quiet", "resolve", "https://example.org/file")
	if err == nil {
		t.Fatal("expected error for unsupported URL")
	}
	var outcome internal.Outcome
	if jerr := json.Unmarshal([]byte(out), &outcome); jerr != nil {
		t.Fatalf("output is not an outcome: %q", out)
	}
	if outcome.Status != internal.StatusUnsupported || outcome.URL != "https://example.org/file" {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestDownload(t *testing.T) {
	payload := strings.Repeat("0123456789", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/report.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="report:final.pdf"`)
		io.WriteString(w, payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	streamer := downloader.NewStreamer(utils.NewHTTPClient(), 512, nil)

	path, err := download(context.Background(), streamer, server.URL+"/files/report.pdf", dir, true)
	if err != nil {
		t.Fatalf("download() error = %v", err)
	}
	if filepath.Base(path) != "report_final.pdf" {
		t.Errorf("path = %q, want sanitized name", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != payload {
		t.Errorf("file content mismatch (%d bytes, %v)", len(data), err)
	}
	if utils.FileExists(utils.PartPath(path)) {
		t.Error(".part file left behind")
	}

	if _, err := download(context.Background(), streamer, server.URL+"/missing.bin", dir, true); err == nil {
		t.Error("expected error for upstream 404")
	}
}
