package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestHelpersAreNoOpsBeforeInit(t *testing.T) {
	Logger = nil
	Info("ignored")
	Debug("ignored")
	Warn("ignored")
	Error("ignored")
	if WithPrefix("x") == nil {
		t.Fatal("WithPrefix should never return nil")
	}
}

func TestInitWriterRespectsLevel(t *testing.T) {
	defer func() { Logger = nil }()

	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	Info("hidden")
	Warn("shown", "feed", "general")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "feed=general") {
		t.Errorf("warn line missing or malformed: %q", out)
	}
}

func TestInitWriterBadLevelFallsBackToInfo(t *testing.T) {
	defer func() { Logger = nil }()

	var buf bytes.Buffer
	InitWriter(&buf, "loud")
	Debug("hidden")
	Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestInitCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, "debug"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("hello")
	Close()
	Logger = nil

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "tailfeed-") {
		t.Fatalf("unexpected log files: %v", entries)
	}
}
