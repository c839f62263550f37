package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationLoad)
	testLogger.Warn("warning message", ColumnKey, "ibu")
	testLogger.Error("error message", ErrAttrKey, fmt.Errorf("test error"))

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}

	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("error value should be stringified")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "RandomForestRegressor",
		ComponentKey, "ensemble",
	)
	contextLogger.Info("contextual message", OperationKey, OperationFit)

	if !testLogger.ContainsField(ModelNameKey, "RandomForestRegressor") {
		t.Error("Model name context not found")
	}
	if !testLogger.ContainsField(ComponentKey, "ensemble") {
		t.Error("Component context not found")
	}
	if !testLogger.ContainsField(OperationKey, OperationFit) {
		t.Error("Operation field not found")
	}
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) {
		t.Error("Logger should be enabled for Info level")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsMessage("this should appear") {
		t.Error("Info message should appear when level is Info")
	}
}

func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("frame").Info("named logger message")

	out := buffer.String()
	if !strings.Contains(out, "provider test message") || !strings.Contains(out, "named logger message") {
		t.Fatalf("missing messages in %q", out)
	}
	if !strings.Contains(out, `"ml.component":"frame"`) {
		t.Error("Component name not found in named logger output")
	}

	provider.SetLevel(LevelError)
	provider.GetLogger().Info("suppressed")
	if strings.Contains(buffer.String(), "suppressed") {
		t.Error("SetLevel should suppress info records")
	}
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			child := testLogger.With(CandidateKey, id)
			for j := 0; j < 5; j++ {
				child.Info("fold done", FoldKey, j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("Expected 20 log entries, got %d", len(entries))
	}
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ToLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ToLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestSetupLoggerWritesStacktrace(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	if err := SetupLogger("debug", &buf); err != nil {
		t.Fatalf("SetupLogger() error = %v", err)
	}

	GetLogger().Error("load failed", ErrAttrKey, errors.New("missing archive"))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["message"] != "load failed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["severity"] != "ERROR" {
		t.Errorf("severity = %v", entry["severity"])
	}
	if _, ok := entry[StacktraceAttrKey]; !ok {
		t.Error("expected stacktrace attribute from ErrFmtHandler")
	}
}

func TestGlobalProvider(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	if err := SetupLogger("info", &buf); err != nil {
		t.Fatalf("SetupLogger() error = %v", err)
	}

	var provider LoggerProvider = GlobalProvider{}
	provider.GetLoggerWithName("app").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	provider.SetLevel(LevelDebug)
	defer provider.SetLevel(LevelInfo)
	provider.GetLoggerWithName("app").Debug("shown", ErrAttr(errors.New("bad row")))

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry[ComponentKey] != "app" {
		t.Errorf("entry = %v", entry)
	}
	if entry[ErrAttrKey] != "bad row" {
		t.Errorf("error attribute = %v", entry[ErrAttrKey])
	}
}

func TestTestLogger_ErrAttr(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	logger.Warn("candidate fit failed", ErrAttr(errors.New("boom")), "fold", 2)
	if !logger.ContainsField(ErrAttrKey, "boom") {
		t.Error("ErrAttr value not captured")
	}
	if !logger.ContainsField("fold", float64(2)) {
		t.Error("key/value pair after an Attr not captured")
	}
}
