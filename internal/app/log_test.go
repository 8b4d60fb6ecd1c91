package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestOpHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "CheckIn-20240615T143045Z",
			level:   slog.LevelInfo,
			message: "attendance action recorded",
			want:    "2024-06-15T14:30:45Z\tINFO\tCheckIn-20240615T143045Z\tattendance action recorded\n",
		},
		{
			name:    "debug level",
			opID:    "GetToday-20240615T143045Z",
			level:   slog.LevelDebug,
			message: "serving cached today",
			want:    "2024-06-15T14:30:45Z\tDEBUG\tGetToday-20240615T143045Z\tserving cached today\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "history exported",
			attrs:   []slog.Attr{slog.String("archive", "offsite"), slog.Int("records", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\thistory exported\tarchive=offsite\trecords=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &opHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestOpHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &opHandler{w: &buf, opID: "op-1"}

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "engine")}).(*opHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "refresh", 0)
	r.AddAttrs(slog.String("day", "2024-01-01"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=engine") {
		t.Errorf("expected pre-set attr component=engine, got: %q", got)
	}
	if !strings.Contains(got, "day=2024-01-01") {
		t.Errorf("expected record attr day=2024-01-01, got: %q", got)
	}
}

func TestOpHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &opHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*opHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestOpHandler_Enabled(t *testing.T) {
	h := &opHandler{}
	// All levels should be enabled
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
