package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingSink struct {
	entries []Entry
}

func (s *recordingSink) Publish(_ context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  []string
		skip  []string
	}{
		{"debug shows all", "debug", []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"}, nil},
		{"info hides debug", "info", []string{"[INFO]", "[WARN]", "[ERROR]"}, []string{"[DEBUG]"}},
		{"error only", "error", []string{"[ERROR]"}, []string{"[DEBUG]", "[INFO]", "[WARN]"}},
		{"unknown falls back to info", "verbose", []string{"[INFO]"}, []string{"[DEBUG]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(tt.level, &buf)

			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e", nil)

			out := buf.String()
			for _, marker := range tt.want {
				if !strings.Contains(out, marker) {
					t.Fatalf("expected %s in output, got %q", marker, out)
				}
			}
			for _, marker := range tt.skip {
				if strings.Contains(out, marker) {
					t.Fatalf("did not expect %s in output, got %q", marker, out)
				}
			}
		})
	}
}

func TestLogger_FormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Error("release failed", errors.New("boom"), "status", 455)

	out := buf.String()
	if !strings.Contains(out, "[ERROR] release failed | status=455 error=boom") {
		t.Fatalf("unexpected line: %q", out)
	}
}

func TestLogger_ForwardsToSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	log := NewWithWriter("info", &buf)
	log.SetLogPublisher(sink)

	log.Info("collected", "node", "node-1")
	log.Debug("filtered out")

	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 forwarded entry, got %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if entry.Level != "INFO" || entry.Message != "collected" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["node"] != "node-1" {
		t.Fatalf("expected node field, got %v", entry.Fields)
	}

	log.SetLogPublisher(nil)
	log.Info("not forwarded")
	if len(sink.entries) != 1 {
		t.Fatalf("expected sink to be detached")
	}
}
