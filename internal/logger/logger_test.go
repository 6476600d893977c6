package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewJSONIncludesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json")

	log.Info().Str("component", "test").Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["service"] != "exstem-attempts" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["message"] != "hello" || entry["component"] != "test" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	_ = New(&buf, "shouting", "json")

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %s, want info", zerolog.GlobalLevel())
	}
}
