// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	logger := NewSlogLogger()
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, want := range []string{
		`"level":"debug"`,
		`"level":"info"`,
		`"level":"warn"`,
		`"level":"error"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestSlogHandlerAttrs(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	logger := NewSlogLogger()
	logger.Info("with attrs",
		slog.String("service", "dataset-refresher"),
		slog.Int("restarts", 2),
		slog.Bool("supervised", true),
	)

	output := buf.String()
	for _, want := range []string{
		`"service":"dataset-refresher"`,
		`"restarts":2`,
		`"supervised":true`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestSlogHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	logger := NewSlogLogger().With(slog.String("component", "supervisor"))
	logger.WithGroup("tree").Info("event", slog.String("state", "running"))

	output := buf.String()
	if !strings.Contains(output, `"component":"supervisor"`) {
		t.Errorf("expected inherited attr, got: %s", output)
	}
	if !strings.Contains(output, `"tree.state":"running"`) {
		t.Errorf("expected grouped attr key, got: %s", output)
	}
}

func TestSlogHandlerNestedGroups(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	logger := NewSlogLogger().WithGroup("outer").WithGroup("inner")
	logger.Info("event", slog.String("key", "value"))

	logger = NewSlogLogger().WithGroup("outer")
	logger.Info("event", slog.Group("inner", slog.String("deep", "value")))

	output := buf.String()
	if !strings.Contains(output, `"outer.inner.key":"value"`) {
		t.Errorf("expected outermost-first key from nested WithGroup, got: %s", output)
	}
	if !strings.Contains(output, `"outer.inner.deep":"value"`) {
		t.Errorf("expected outermost-first key from inline group, got: %s", output)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	Init(Config{Level: "warn", Format: "json", Output: &bytes.Buffer{}})
	defer Init(DefaultConfig())

	h := NewSlogHandler()
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
