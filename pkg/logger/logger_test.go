package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := out
	out = buf
	t.Cleanup(func() {
		out = prev
		_ = Init()
	})
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := SetFormat(format); err != nil {
		t.Fatalf("set format: %v", err)
	}
	return buf
}

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFields(t *testing.T) {
	buf := captureOutput(t, "json")

	Get().Info(context.Background(), "score recorded",
		String("learner", "l1"),
		Int("lessons", 3),
		Bool("improved", true),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "score recorded" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["learner"] != "l1" {
		t.Errorf("learner = %v", rec["learner"])
	}
	if rec["improved"] != true {
		t.Errorf("improved = %v", rec["improved"])
	}
	if _, ok := rec["source"]; !ok {
		t.Error("expected source field")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	buf := captureOutput(t, "text")

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn line should be written")
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	buf := captureOutput(t, "text")

	Named("sweeper").With(String("course", "go-101")).Info(context.Background(), "sweep done")

	line := buf.String()
	if !strings.Contains(line, "logger=sweeper") {
		t.Errorf("expected logger name in %q", line)
	}
	if !strings.Contains(line, "course=go-101") {
		t.Errorf("expected bound field in %q", line)
	}
}

func TestLoggerRejectsUnknownSettings(t *testing.T) {
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
