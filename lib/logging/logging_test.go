// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) succeeded")
	}
}

func TestAutoFormatIsJSONOffTerminal(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := New(&buffer, Options{Format: "auto"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("package published", "name", "foo", "version", "1.0")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output %q is not JSON: %v", buffer.String(), err)
	}
	if record["msg"] != "package published" || record["name"] != "foo" {
		t.Errorf("record = %v", record)
	}
}

func TestTextFormat(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := New(&buffer, Options{Format: "text", Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("artifact saved", "address", "/srv/foo")

	output := buffer.String()
	if !strings.Contains(output, "artifact saved") || !strings.Contains(output, "address=/srv/foo") {
		t.Errorf("output = %q", output)
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("colour codes written to a non-terminal: %q", output)
	}
}

func TestLevelFilters(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := New(&buffer, Options{Format: "json", Level: "warn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	if buffer.Len() != 0 {
		t.Errorf("info written at warn level: %q", buffer.String())
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Error("New accepted format xml")
	}
}
