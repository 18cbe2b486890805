package anilist

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMediaListStatus_RoundTrip(t *testing.T) {
	for _, status := range AllStatuses() {
		parsed, err := ParseMediaListStatus(status.String())
		if err != nil {
			t.Fatalf("failed to parse %s back: %v", status, err)
		}
		if parsed != status {
			t.Errorf("%s round-tripped to %s", status, parsed)
		}
	}
}

func TestParseMediaListStatus(t *testing.T) {
	t.Run("is case insensitive", func(t *testing.T) {
		for _, input := range []string{"current", "Current", "CURRENT", "  current  "} {
			status, err := ParseMediaListStatus(input)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", input, err)
			}
			if status != StatusCurrent {
				t.Errorf("%q parsed to %s", input, status)
			}
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseMediaListStatus("WATCHING")
		if err == nil {
			t.Fatal("expected an error for an unknown status")
		}
		if !strings.Contains(err.Error(), "CURRENT") {
			t.Errorf("error should list the valid values, got: %v", err)
		}
	})
}

func TestMediaListStatus_JSON(t *testing.T) {
	t.Run("encodes the wire value", func(t *testing.T) {
		data, err := json.Marshal(StatusCompleted)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `"COMPLETED"` {
			t.Errorf("unexpected encoding %s", data)
		}
	})

	t.Run("decodes the wire value", func(t *testing.T) {
		var status MediaListStatus
		if err := json.Unmarshal([]byte(`"PAUSED"`), &status); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if status != StatusPaused {
			t.Errorf("expected PAUSED, got %s", status)
		}
	})

	t.Run("rejects unknown wire values", func(t *testing.T) {
		var status MediaListStatus
		if err := json.Unmarshal([]byte(`"BINGING"`), &status); err == nil {
			t.Fatal("expected an error for an unknown wire value")
		}
	})

	t.Run("rejects invalid enum values on encode", func(t *testing.T) {
		if _, err := json.Marshal(MediaListStatus(99)); err == nil {
			t.Fatal("expected an error encoding an out-of-range status")
		}
	})
}
