// Stocksync - Offline-First Inventory Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stocksync

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogLogger_WritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetLogger(orig) })

	logger := NewSlogLogger()
	logger.Info("service started", "service", "reconcile-loop", "attempt", int64(2))

	out := buf.String()
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("Expected message in output, got %s", out)
	}
	if !strings.Contains(out, `"service":"reconcile-loop"`) || !strings.Contains(out, `"attempt":2`) {
		t.Errorf("Expected attributes in output, got %s", out)
	}
}

func TestSlogLogger_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetLogger(orig) })

	logger := NewSlogLogger().With("component", "supervisor").WithGroup("tree")
	logger.Warn("service backing off", "name", "bridge")

	out := buf.String()
	if !strings.Contains(out, `"component":"supervisor"`) {
		t.Errorf("Expected With attribute, got %s", out)
	}
	if !strings.Contains(out, `"tree.name":"bridge"`) {
		t.Errorf("Expected group-prefixed attribute, got %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("Expected warn level, got %s", out)
	}
}
