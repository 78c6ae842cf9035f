package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWithinDirectory(t *testing.T) {
	base := t.TempDir()

	if err := WithinDirectory(filepath.Join(base, "granules", "a.csv"), base); err != nil {
		t.Errorf("nested path rejected: %v", err)
	}
	if err := WithinDirectory(base, base); err != nil {
		t.Errorf("directory itself rejected: %v", err)
	}
	if err := WithinDirectory(filepath.Join(base, "..", "other.csv"), base); err == nil {
		t.Error("parent escape accepted")
	}
	if err := WithinDirectory("/etc/passwd", base); err == nil {
		t.Error("absolute outside path accepted")
	}
}

func TestWithinDirectorySymlinkEscape(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(base, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := WithinDirectory(filepath.Join(link, "file.csv"), base); err == nil {
		t.Error("symlink escape accepted")
	}
}

func TestSafeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ATL13_20230610_granule.csv", "ATL13_20230610_granule.csv"},
		{"../../etc/passwd", "etc_passwd"},
		{"river run #7.csv", "river_run_7.csv"},
		{"...", "granule"},
		{"", "granule"},
		{"weird//name", "weird_name"},
	}
	for _, tc := range cases {
		if got := SafeFilename(tc.in); got != tc.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSafeFilenameCapsLength(t *testing.T) {
	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'a'
	}
	if got := SafeFilename(string(long)); len(got) > maxFilenameLen {
		t.Errorf("len = %d, want <= %d", len(got), maxFilenameLen)
	}
}
