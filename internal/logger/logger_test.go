package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Info().Str("key", "value").Msg("test message")

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Errorf("expected log output to contain message, got %q", out)
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected log output to contain field, got %q", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)

	got.Info().Msg("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("logger from context did not write to original writer")
	}
}

func TestWithImport(t *testing.T) {
	var buf bytes.Buffer
	log := WithImport(NewWithWriter(&buf), "batch-123")

	log.Info().Msg("tagged")
	if !strings.Contains(buf.String(), `"import_id":"batch-123"`) {
		t.Errorf("expected import_id field, got %q", buf.String())
	}
}
