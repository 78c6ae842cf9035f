// Package security guards the filesystem surface of the API: uploaded
// granule names are sanitized before they touch a path, and paths read back
// from run records are confined to the session tree.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WithinDirectory reports an error unless path resolves to a location inside
// dir. Symlinks in existing components are resolved first so a link cannot
// smuggle the path out of the tree.
func WithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	} else if resolvedParent, err := filepath.EvalSymlinks(filepath.Dir(absPath)); err == nil {
		// Path doesn't exist yet; judge by its parent.
		absPath = filepath.Join(resolvedParent, filepath.Base(absPath))
	}
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		absDir = resolved
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return fmt.Errorf("path %s is outside %s", path, dir)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes %s", path, dir)
	}
	return nil
}

const maxFilenameLen = 128

// SafeFilename reduces an arbitrary string to a filename-safe form: ASCII
// letters, digits, dot, dash and underscore survive; runs of anything else
// collapse to a single underscore. Empty or fully-hostile input yields
// "granule".
func SafeFilename(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_'
		if !ok {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "granule"
	}
	return out
}
