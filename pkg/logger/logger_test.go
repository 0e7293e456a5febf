package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	log.Info().Msg("dropped")
	log.Warn().Str("symbol", "BTC-USDT-SWAP").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if entry["message"] != "kept" || entry["symbol"] != "BTC-USDT-SWAP" || entry["time"] == nil {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewConsoleAndBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("DEBUG", "console", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	log.Debug().Msg("hello")
	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected console output, got %q", buf.String())
	}

	if _, err := New("loud", "json", &buf); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
