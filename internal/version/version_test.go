package version

import "testing"

func TestShortCommit(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "0123456789ab"},
	}
	for _, tc := range tests {
		if got := shortCommit(tc.in); got != tc.want {
			t.Errorf("shortCommit(%q): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolvePrefersLdflags(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version = "v1.2.3"
	Commit = "deadbeefcafebabe"
	info := Resolve()
	if info.Version != "v1.2.3" || info.Commit != "deadbeefcafebabe" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if got := String(); got != "v1.2.3 (deadbeefcafe)" {
		t.Fatalf("String: got %q", got)
	}
}

func TestResolveFallsBack(t *testing.T) {
	oldV, oldB := Version, BuildTime
	t.Cleanup(func() { Version, BuildTime = oldV, oldB })

	Version = ""
	BuildTime = "2026-01-02T03:04:05Z"
	if info := Resolve(); info.Version == "" {
		t.Fatal("expected non-empty fallback version")
	}
}
