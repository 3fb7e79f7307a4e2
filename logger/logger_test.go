package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureReportLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("report", "text", "stderr", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if log.GetLevel().String() != "info" {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "gateway.log")
	log := Logger()
	if err := log.Configure("debug", "json", path, 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"hello"`)) {
		t.Fatalf("log line not written: %s", data)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogMetricFields(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)

	fields := Fields{"symbol": "BTCUSDT"}
	log.WithComponent("rest").LogMetric("used_weight", 12.0, "gauge", fields)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["metric"] != "used_weight" || line["metric_type"] != "gauge" || line["symbol"] != "BTCUSDT" {
		t.Fatalf("unexpected metric line: %v", line)
	}
	if _, ok := fields["metric"]; ok {
		t.Fatalf("caller fields mutated: %v", fields)
	}
}

func TestWarnAndErrorAreCounted(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)

	before := Stats()
	log.WithComponent("test").Warn("careful")
	log.WithComponent("test").Error("broken")
	after := Stats()

	if after.Warns != before.Warns+1 {
		t.Fatalf("warn not counted: before=%d after=%d", before.Warns, after.Warns)
	}
	if after.Errors != before.Errors+1 {
		t.Fatalf("error not counted: before=%d after=%d", before.Errors, after.Errors)
	}
}

func TestIsWrapperFrame(t *testing.T) {
	cases := map[string]bool{
		"github.com/sirupsen/logrus.(*Entry).Log":    true,
		"spotgate/logger.(*Entry).Info":              true,
		"spotgate/internal/metrics.recordMetric":     true,
		"spotgate/rest.(*Client).call":               false,
		"spotgate/internal/metrics/rate.ReportIPBan": false,
		"main.main":                                  false,
	}
	for fn, want := range cases {
		if got := isWrapperFrame(fn); got != want {
			t.Errorf("%s: expected %v got %v", fn, want, got)
		}
	}
}
