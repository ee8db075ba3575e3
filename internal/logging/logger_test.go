package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zppd.log")
	logger, err := New(Options{Path: path, Session: "main"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"hello"`) {
		t.Errorf("log line missing msg: %s", line)
	}
	if !strings.Contains(line, `"session":"main"`) {
		t.Errorf("log line missing session field: %s", line)
	}
}

func TestLevelChangesAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zppd.log")
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := New(Options{Path: path, Session: "main", Level: level})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hidden")
	level.SetLevel(zapcore.DebugLevel)
	logger.Debug("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("debug line missing after lowering the level")
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != zapcore.DebugLevel {
		t.Errorf("ParseLevel(debug) = %v", got)
	}
	if got := ParseLevel("bogus"); got != zapcore.InfoLevel {
		t.Errorf("ParseLevel(bogus) = %v, want info", got)
	}
}
