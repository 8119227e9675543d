package internal

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// SecureLogger provides secure logging with sensitive data redaction
type SecureLogger struct {
	logger    zerolog.Logger
	level     LogLevel
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// PatternRedactor replaces every match of its patterns.
type PatternRedactor struct {
	rules []redactRule
}

type redactRule struct {
	re   *regexp.Regexp
	repl string
}

// Redact implements Redactor.
func (r *PatternRedactor) Redact(input string) string {
	for _, rule := range r.rules {
		input = rule.re.ReplaceAllString(input, rule.repl)
	}
	return input
}

var (
	urlQueryPattern = regexp.MustCompile(`(https?://[^\s?"'#]+)\?[^\s"'#]*`)

	cookieRules = []redactRule{
		{regexp.MustCompile(`(?i)\b(ndus|crypt|xsrf-token|laravel_session|bduss|stoken|phpsessid)=[^;\s&"']+`), "${1}=[REDACTED]"},
		{regexp.MustCompile(`(?i)\b(bearer)\s+[^\s;"']+`), "${1} [REDACTED]"},
	}

	urlRules = []redactRule{
		{regexp.MustCompile(`(?i)([?&](?:access_token|token|waitingtoken|key|secret|password|pass|pwd|security_hash)=)[^&\s"'#]+`), "${1}[REDACTED]"},
	}
)

// NewCookieRedactor redacts credential cookie values and bearer tokens.
func NewCookieRedactor() *PatternRedactor {
	return &PatternRedactor{rules: cookieRules}
}

// NewURLRedactor redacts sensitive query parameters.
func NewURLRedactor() *PatternRedactor {
	return &PatternRedactor{rules: urlRules}
}

// NewSecureLogger creates a new secure logger. format is "console" or "json".
func NewSecureLogger(output io.Writer, level LogLevel, debug, quiet bool, format string) *SecureLogger {
	w := output
	if format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    true,
			TimeFormat: "2006-01-02 15:04:05",
			PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.CallerFieldName, zerolog.MessageFieldName},
			FormatTimestamp: func(i interface{}) string {
				return fmt.Sprintf("[%s]", time.Now().Format("2006-01-02 15:04:05"))
			},
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%s", i))
			},
		}
	}

	sl := &SecureLogger{
		logger: zerolog.New(w).With().Timestamp().Logger().Level(zerolog.DebugLevel),
		level:  level,
		debug:  debug,
		quiet:  quiet,
		redactors: []Redactor{
			NewCookieRedactor(),
			NewURLRedactor(),
		},
	}
	if debug && sl.level < LogLevelDebug {
		sl.level = LogLevelDebug
	}

	return sl
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	level := LogLevelInfo
	if debug {
		level = LogLevelDebug
	}
	if quiet {
		level = LogLevelError
	}

	return NewSecureLogger(os.Stderr, level, debug, quiet, "console")
}

// redactSensitiveData applies all redactors to the input string
func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

func callerOutsideLogger() (string, bool) {
	for depth := 3; depth <= 6; depth++ {
		_, file, line, ok := runtime.Caller(depth)
		if ok && !strings.HasSuffix(file, "logger.go") && !strings.HasSuffix(file, "log.go") {
			parts := strings.Split(file, "/")
			return fmt.Sprintf("%s:%d", parts[len(parts)-1], line), true
		}
	}
	return "", false
}

// shouldLog determines if a message should be logged based on level
func (sl *SecureLogger) shouldLog(level LogLevel) bool {
	if sl.quiet && level > LogLevelError {
		return false
	}
	return level <= sl.level
}

func (sl *SecureLogger) emit(level LogLevel, fields map[string]interface{}, format string, args ...interface{}) {
	if !sl.shouldLog(level) {
		return
	}

	message := sl.redactSensitiveData(fmt.Sprintf(format, args...))
	ev := sl.logger.WithLevel(level.zerologLevel())
	if sl.debug {
		if caller, ok := callerOutsideLogger(); ok {
			ev = ev.Str(zerolog.CallerFieldName, caller)
		}
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = sl.redactSensitiveData(s)
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.emit(LogLevelError, nil, format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.emit(LogLevelWarn, nil, format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.emit(LogLevelInfo, nil, format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.emit(LogLevelDebug, nil, format, args...)
}

// Fields logs msg at level with structured fields. String values are redacted.
func (sl *SecureLogger) Fields(level LogLevel, msg string, fields map[string]interface{}) {
	sl.emit(level, fields, "%s", msg)
}

// LogHTTPRequest logs an HTTP request with sensitive data redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}

	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, req.URL.String(), sl.sanitizeHeaders(req.Header))
}

// LogHTTPResponse logs an HTTP response with sensitive data redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}

	sl.Debug("HTTP Response: %s Headers: %v", resp.Status, sl.sanitizeHeaders(resp.Header))
}

func (sl *SecureLogger) sanitizeHeaders(h http.Header) map[string]string {
	sanitized := make(map[string]string, len(h))
	for name, values := range h {
		if sl.isSensitiveHeader(name) {
			sanitized[name] = "[REDACTED]"
		} else {
			sanitized[name] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// isSensitiveHeader checks if a header contains sensitive information
func (sl *SecureLogger) isSensitiveHeader(name string) bool {
	sensitiveHeaders := []string{
		"authorization",
		"cookie",
		"set-cookie",
		"x-auth-token",
		"x-api-key",
		"x-token",
		"x-xsrf-token",
		"bearer",
		"token",
	}

	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}
