package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/janisto/allstar-api/internal/platform/timeutil"
)

// captureOutput redirects stdout while logFn runs and returns everything written.
func captureOutput(t *testing.T, logFn func(*zap.Logger)) string {
	t.Helper()

	resetLoggerForTest()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	defer func() { _ = r.Close() }()

	origStdout := os.Stdout
	origStderr := os.Stderr
	os.Stdout = w
	os.Stderr = w
	defer func() {
		os.Stdout = origStdout
		os.Stderr = origStderr
	}()

	logger := Logger()
	logFn(logger)
	_ = logger.Sync()

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("failed to close writer: %v", closeErr)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read log output: %v", err)
	}
	return string(data)
}

// captureLogOutput captures a single log entry emitted by logFn and returns it as a map.
func captureLogOutput(t *testing.T, logFn func(*zap.Logger)) map[string]any {
	t.Helper()

	line := strings.TrimSpace(captureOutput(t, logFn))
	if line == "" {
		t.Fatalf("expected log output, got empty string")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("failed to unmarshal log JSON: %v", err)
	}
	return payload
}

// resetLoggerForTest clears the singleton state so tests can capture fresh log output.
func resetLoggerForTest() {
	loggerOnce = sync.Once{}
	baseLogger = nil
	sugarLogger = nil
	loggerErr = nil
	level.SetLevel(zapcore.InfoLevel)
}

func TestLoggerStructuredOutput(t *testing.T) {
	payload := captureLogOutput(t, func(l *zap.Logger) {
		l.Info("GET /test")
	})

	if got := payload["severity"]; got != "INFO" {
		t.Fatalf("expected severity INFO, got %v", got)
	}
	if _, exists := payload["level"]; exists {
		t.Fatalf("did not expect level field")
	}
	if msg, ok := payload["message"].(string); !ok || msg != "GET /test" {
		t.Fatalf("expected message 'GET /test', got %v", payload["message"])
	}

	ts, ok := payload["timestamp"].(string)
	if !ok {
		t.Fatalf("expected timestamp field to be a string, got %T", payload["timestamp"])
	}
	if _, err := time.Parse(timeutil.RFC3339Micros, ts); err != nil {
		t.Fatalf("timestamp is not RFC3339Micros: %v", err)
	}
}

func TestSugarLoggerStructuredOutput(t *testing.T) {
	payload := captureLogOutput(t, func(*zap.Logger) {
		Sugar().Warnw("slow response", "latency_ms", 120)
	})

	if got := payload["severity"]; got != "WARNING" {
		t.Fatalf("expected severity WARNING, got %v", got)
	}
	if latency, ok := payload["latency_ms"].(float64); !ok || latency != 120 {
		t.Fatalf("expected latency_ms 120, got %v", payload["latency_ms"])
	}
}

func TestLoggerIncludesCallerField(t *testing.T) {
	payload := captureLogOutput(t, func(l *zap.Logger) {
		l.Info("caller test")
	})

	caller, ok := payload["caller"].(string)
	if !ok {
		t.Fatal("expected caller field to be a string")
	}
	if !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("expected caller to reference logger_test.go, got %s", caller)
	}
}

func TestEncodeSeverityMapping(t *testing.T) {
	tests := []struct {
		level    zapcore.Level
		expected string
	}{
		{zapcore.DebugLevel, "DEBUG"},
		{zapcore.InfoLevel, "INFO"},
		{zapcore.WarnLevel, "WARNING"},
		{zapcore.ErrorLevel, "ERROR"},
		{zapcore.DPanicLevel, "CRITICAL"},
		{zapcore.PanicLevel, "ALERT"},
		{zapcore.FatalLevel, "EMERGENCY"},
		{zapcore.Level(99), "DEFAULT"},
	}

	for _, tt := range tests {
		enc := &captureArrayEncoder{}
		encodeSeverity(tt.level, enc)
		if len(enc.values) != 1 || enc.values[0] != tt.expected {
			t.Fatalf("encodeSeverity(%v) = %v, want %s", tt.level, enc.values, tt.expected)
		}
	}
}

func TestEncodeTimeMicrosFormatsCorrectly(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "UTC time with microseconds",
			input:    time.Date(2024, 6, 15, 10, 30, 45, 123456000, time.UTC),
			expected: "2024-06-15T10:30:45.123456Z",
		},
		{
			name:     "non-UTC time converts to UTC",
			input:    time.Date(2024, 6, 15, 12, 0, 0, 500000000, time.FixedZone("EST", -5*60*60)),
			expected: "2024-06-15T17:00:00.500000Z",
		},
		{
			name:     "sub-microsecond precision truncates",
			input:    time.Date(2024, 3, 20, 8, 15, 30, 999999999, time.UTC),
			expected: "2024-03-20T08:15:30.999999Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &captureArrayEncoder{}
			encodeTimeMicros(tt.input, enc)
			if len(enc.values) != 1 || enc.values[0] != tt.expected {
				t.Fatalf("expected %q, got %v", tt.expected, enc.values)
			}
		})
	}
}

func TestDebugLevelNotLoggedByDefault(t *testing.T) {
	out := captureOutput(t, func(l *zap.Logger) {
		l.Debug("debug message should not appear")
	})
	if strings.Contains(out, "debug message") {
		t.Fatal("debug level messages should not be logged at the default level")
	}
}

func TestSetLevelEnablesDebug(t *testing.T) {
	out := captureOutput(t, func(l *zap.Logger) {
		if err := SetLevel("debug"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		l.Debug("now visible")
	})
	t.Cleanup(resetLoggerForTest)

	if !strings.Contains(out, "now visible") {
		t.Fatalf("expected debug entry after SetLevel(debug), got %q", out)
	}
	if !strings.Contains(out, `"severity":"DEBUG"`) {
		t.Fatalf("expected DEBUG severity, got %q", out)
	}
}

func TestSetLevelSuppressesInfo(t *testing.T) {
	out := captureOutput(t, func(l *zap.Logger) {
		if err := SetLevel("error"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		l.Info("hidden")
		l.Warn("hidden too")
	})
	t.Cleanup(resetLoggerForTest)

	if strings.TrimSpace(out) != "" {
		t.Fatalf("expected no output at error level, got %q", out)
	}
}

func TestSetLevelParsing(t *testing.T) {
	t.Cleanup(resetLoggerForTest)

	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{" error ", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level.SetLevel(zapcore.InfoLevel)
			err := SetLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				if Level() != zapcore.InfoLevel {
					t.Fatalf("expected level to stay info after error, got %v", Level())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if Level() != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, Level())
			}
		})
	}
}

func TestErrReturnsNilOnSuccess(t *testing.T) {
	resetLoggerForTest()
	if err := Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if baseLogger == nil {
		t.Fatal("expected baseLogger to be initialized after Err()")
	}
}

func TestSyncWithoutInit(t *testing.T) {
	resetLoggerForTest()
	if err := Sync(); err != nil {
		t.Logf("Sync returned error (may be expected on some platforms): %v", err)
	}
}

func TestLoggerAndSugarShareCore(t *testing.T) {
	resetLoggerForTest()

	sugar := Sugar()
	logger := Logger()
	if sugar.Desugar().Core() != logger.Core() {
		t.Fatal("expected Logger and Sugar to share the same core")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	resetLoggerForTest()

	var wg sync.WaitGroup
	results := make(chan *zap.Logger, 100)

	for range 100 {
		wg.Go(func() {
			results <- Logger()
		})
	}

	wg.Wait()
	close(results)

	var first *zap.Logger
	for logger := range results {
		if first == nil {
			first = logger
		} else if logger != first {
			t.Fatal("concurrent Logger() calls returned different instances")
		}
	}
}

// captureArrayEncoder collects strings appended via the PrimitiveArrayEncoder interface.
type captureArrayEncoder struct {
	values []string
}

func (c *captureArrayEncoder) AppendBool(bool)             {}
func (c *captureArrayEncoder) AppendByteString([]byte)     {}
func (c *captureArrayEncoder) AppendComplex128(complex128) {}
func (c *captureArrayEncoder) AppendComplex64(complex64)   {}
func (c *captureArrayEncoder) AppendFloat64(float64)       {}
func (c *captureArrayEncoder) AppendFloat32(float32)       {}
func (c *captureArrayEncoder) AppendInt(int)               {}
func (c *captureArrayEncoder) AppendInt64(int64)           {}
func (c *captureArrayEncoder) AppendInt32(int32)           {}
func (c *captureArrayEncoder) AppendInt16(int16)           {}
func (c *captureArrayEncoder) AppendInt8(int8)             {}
func (c *captureArrayEncoder) AppendString(s string)       { c.values = append(c.values, s) }
func (c *captureArrayEncoder) AppendUint(uint)             {}
func (c *captureArrayEncoder) AppendUint64(uint64)         {}
func (c *captureArrayEncoder) AppendUint32(uint32)         {}
func (c *captureArrayEncoder) AppendUint16(uint16)         {}
func (c *captureArrayEncoder) AppendUint8(uint8)           {}
func (c *captureArrayEncoder) AppendUintptr(uintptr)       {}
