package internal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestSecureLogger_RedactSensitiveData(t *testing.T) {
	logger := NewDefaultLogger(false, false)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "redact_crypt_cookie",
			input:    "Cookie: crypt=abc123def456; other=value",
			expected: "Cookie: crypt=[REDACTED]; other=value",
		},
		{
			name:     "redact_laravel_session",
			input:    "XSRF-TOKEN=xyz789; laravel_session=qwe",
			expected: "XSRF-TOKEN=[REDACTED]; laravel_session=[REDACTED]",
		},
		{
			name:     "redact_authorization_header",
			input:    "Authorization: Bearer token123",
			expected: "Authorization: Bearer [REDACTED]",
		},
		{
			name:     "redact_ndus_query",
			input:    "https://nord.teraboxfast.com/?ndus=secret&url=abc",
			expected: "https://nord.teraboxfast.com/?ndus=[REDACTED]&url=abc",
		},
		{
			name:     "redact_uptobox_token",
			input:    "https://uptobox.com/api/link?token=secret123&file_code=x",
			expected: "https://uptobox.com/api/link?token=[REDACTED]&file_code=x",
		},
		{
			name:     "no_sensitive_data",
			input:    "This is a normal log message",
			expected: "This is a normal log message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logger.redactSensitiveData(tt.input)
			if result != tt.expected {
				t.Errorf("redactSensitiveData() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSecureLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelWarn, false, false, "console")

	logger.Debug("debug message")
	logger.Info("info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should not be logged when level is WARN")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should not be logged when level is WARN")
	}

	buf.Reset()
	logger.Warn("warn message")
	logger.Error("error message")

	output = buf.String()
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be logged when level is WARN")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be logged when level is WARN")
	}
	if !strings.Contains(output, "ERROR") {
		t.Errorf("console output should carry the level name, got: %s", output)
	}
}

func TestSecureLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, true, "console")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	if output := buf.String(); output != "" {
		t.Errorf("No messages should be logged in quiet mode except errors, got: %s", output)
	}

	logger.Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Error("Error messages should be logged even in quiet mode")
	}
}

func TestSecureLogger_DebugMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, true, false, "console")

	logger.Info("test message")

	if output := buf.String(); !strings.Contains(output, ".go:") {
		t.Errorf("Debug mode should include file and line information, got: %s", output)
	}
}

func TestSecureLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelInfo, false, false, "json")

	logger.Fields(LogLevelInfo, "request", map[string]interface{}{
		"path":   "/resolve?url=https://x.test/?token=abc",
		"status": 200,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json output not parseable: %v (%s)", err, buf.String())
	}
	if entry["message"] != "request" {
		t.Errorf("message = %v, want request", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if strings.Contains(entry["path"].(string), "abc") {
		t.Errorf("string fields should be redacted, got %v", entry["path"])
	}
}

func TestSecureLogger_HTTPRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, true, false, "console")

	req, _ := http.NewRequest("GET", "https://example.com/api?token=secret123", nil)
	req.Header.Set("Authorization", "Bearer secret456")
	req.Header.Set("User-Agent", "TestAgent/1.0")
	req.Header.Set("Cookie", "crypt=secret789")

	logger.LogHTTPRequest(req)

	output := buf.String()

	for _, secret := range []string{"secret123", "secret456", "secret789"} {
		if strings.Contains(output, secret) {
			t.Errorf("%s should be redacted, got: %s", secret, output)
		}
	}
	if !strings.Contains(output, "TestAgent/1.0") {
		t.Error("User-Agent should be preserved")
	}
	if !strings.Contains(output, "[REDACTED]") {
		t.Error("Redacted placeholder should be present")
	}
}

func TestSecureLogger_IsSensitiveHeader(t *testing.T) {
	logger := NewDefaultLogger(false, false)

	tests := []struct {
		header    string
		sensitive bool
	}{
		{"Authorization", true},
		{"Cookie", true},
		{"Set-Cookie", true},
		{"X-Token", true},
		{"X-XSRF-TOKEN", true},
		{"X-API-Key", true},
		{"User-Agent", false},
		{"Content-Type", false},
		{"Referer", false},
		{"COOKIE", true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := logger.isSensitiveHeader(tt.header); got != tt.sensitive {
				t.Errorf("isSensitiveHeader(%q) = %v, want %v", tt.header, got, tt.sensitive)
			}
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelError, "ERROR"},
		{LogLevelWarn, "WARN"},
		{LogLevelInfo, "INFO"},
		{LogLevelDebug, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warning", LogLevelWarn},
		{"CRITICAL", LogLevelError},
		{"bogus", LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLogLevel(tt.in); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogScrapeFailure_Severity(t *testing.T) {
	var buf bytes.Buffer
	loggerMutex.Lock()
	previous := globalLogger
	globalLogger = NewSecureLogger(&buf, LogLevelInfo, false, false, "console")
	loggerMutex.Unlock()
	t.Cleanup(func() {
		loggerMutex.Lock()
		globalLogger = previous
		loggerMutex.Unlock()
	})

	LogScrapeFailure(NewCredentialError("gdtot", "GDTOT_CRYPT"))
	if !strings.Contains(buf.String(), "CRITICAL: ") {
		t.Errorf("credential failure not logged as critical: %q", buf.String())
	}

	buf.Reset()
	LogScrapeFailure(NewParseError("gdtot", "button missing"))
	if strings.Contains(buf.String(), "CRITICAL") || !strings.Contains(buf.String(), "button missing") {
		t.Errorf("parse failure logged as %q", buf.String())
	}
}
