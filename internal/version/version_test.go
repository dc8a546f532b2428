package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "1.4.0", "9f2c1ab", "2026-03-01"
	if got, want := String(), "1.4.0 (commit 9f2c1ab, built 2026-03-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestShortRevision(t *testing.T) {
	tests := []struct{ rev, want string }{
		{"0123456789abcdef0123", "0123456789ab"},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		if got := shortRevision(tt.rev); got != tt.want {
			t.Errorf("shortRevision(%q) = %q, want %q", tt.rev, got, tt.want)
		}
	}
}
