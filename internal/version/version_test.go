package version

import "testing"

func TestString(t *testing.T) {
	Version, Commit, BuildDate = "1.2.3", "abc123", "2024-01-01"
	defer func() { Version, Commit, BuildDate = "dev", "unknown", "unknown" }()

	if got, want := String(), "1.2.3 (commit abc123, built 2024-01-01)"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := UserAgent(); got != "oraclenode/1.2.3" {
		t.Fatalf("unexpected user agent %q", got)
	}
}
