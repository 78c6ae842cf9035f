// Package storage manages session-scoped working directories: each
// processing session gets its own tree under a base directory, holding the
// converted granule CSVs and any processed exports. Sessions are throwaway;
// Clear wipes one without touching its neighbours.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/riverlab-data/waterline.report/internal/fsutil"
)

// Data kinds within a session tree.
const (
	KindGranules  = "granules"
	KindProcessed = "processed"
)

// Manager owns one session's directory tree.
type Manager struct {
	fs      fsutil.FileSystem
	base    string
	session string
}

// NewSession creates a manager for a fresh session with a generated id.
func NewSession(base string, fs fsutil.FileSystem) (*Manager, error) {
	return OpenSession(base, uuid.NewString(), fs)
}

// OpenSession creates (or reattaches to) the session with the given id.
func OpenSession(base, session string, fs fsutil.FileSystem) (*Manager, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if session == "" {
		return nil, fmt.Errorf("storage: empty session id")
	}
	if strings.ContainsAny(session, `/\`) {
		return nil, fmt.Errorf("storage: session id %q contains path separators", session)
	}
	m := &Manager{fs: fs, base: base, session: session}
	if err := fs.MkdirAll(m.Root(), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create session dir: %w", err)
	}
	return m, nil
}

// SessionID returns the session identifier.
func (m *Manager) SessionID() string { return m.session }

// Root returns the session's root directory.
func (m *Manager) Root() string { return filepath.Join(m.base, m.session) }

// Dir returns (and creates) the directory for one data kind.
func (m *Manager) Dir(kind string) (string, error) {
	dir := filepath.Join(m.Root(), kind)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create %s dir: %w", kind, err)
	}
	return dir, nil
}

// ListGranules returns the session's granule CSV paths in name order, the
// order batch processing uses.
func (m *Manager) ListGranules() ([]string, error) {
	dir, err := m.Dir(KindGranules)
	if err != nil {
		return nil, err
	}
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list granules: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// AddGranule writes a granule CSV into the session.
func (m *Manager) AddGranule(name string, data []byte) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("storage: granule name %q contains path elements", name)
	}
	dir, err := m.Dir(KindGranules)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := m.fs.WriteFile(path, data, os.FileMode(0o644)); err != nil {
		return "", fmt.Errorf("storage: write granule: %w", err)
	}
	return path, nil
}

// Size returns the total bytes stored in the session tree.
func (m *Manager) Size() (int64, error) {
	return m.dirSize(m.Root())
}

func (m *Manager) dirSize(dir string) (int64, error) {
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			sub, err := m.dirSize(path)
			if err != nil {
				return 0, err
			}
			total += sub
			continue
		}
		info, err := m.fs.Stat(path)
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Clear wipes the session's data and recreates its empty root.
func (m *Manager) Clear() error {
	if err := m.fs.RemoveAll(m.Root()); err != nil {
		return fmt.Errorf("storage: clear session: %w", err)
	}
	if err := m.fs.MkdirAll(m.Root(), 0o755); err != nil {
		return fmt.Errorf("storage: recreate session dir: %w", err)
	}
	return nil
}
