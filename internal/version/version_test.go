package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	Version, GitSHA, BuildTime = "1.2.0", "0123456789abcdef", "2026-01-02"
	if got, want := String(), "1.2.0 (0123456, built 2026-01-02)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	GitSHA = "abc"
	if got, want := String(), "1.2.0 (abc, built 2026-01-02)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if info := Get(); info.Version != "1.2.0" || info.GitSHA != "abc" {
		t.Errorf("Get() = %+v", info)
	}
}
