package cli

import (
	"testing"
	"time"
)

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("from", "")
	if err != nil || got != nil {
		t.Fatalf("empty flag should yield nil, got %v %v", got, err)
	}

	got, err = parseTimeFlag("from", "2024-03-01T00:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %s", got)
	}

	if _, err := parseTimeFlag("to", "yesterday"); err == nil {
		t.Fatal("expected error for non RFC3339 value")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "fetch", "keys", "show", "export", "replay", "simulate", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered", name)
		}
	}
	if cmd, _, err := rootCmd.Find([]string{"keys", "new"}); err != nil || cmd.Name() != "new" {
		t.Fatal("keys new not registered")
	}
}
