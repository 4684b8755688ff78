// Package layout maps document states onto the storage tree and converts
// between root-relative and absolute paths.
package layout

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"docdesk/internal/record"
)

const storageDir = "storage"

// Layout resolves canonical locations beneath a storage root.
type Layout struct {
	root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{root: filepath.Clean(root)}
}

// Root returns the absolute storage root.
func (l Layout) Root() string {
	return l.root
}

// StateDir returns the absolute canonical directory for state.
func (l Layout) StateDir(state record.State) string {
	return filepath.Join(l.root, storageDir, string(state))
}

// StateRel returns the root-relative canonical directory for state.
func StateRel(state record.State) string {
	return path.Join(storageDir, string(state))
}

// MetaDir holds one JSON record per document, or the SQLite database.
func (l Layout) MetaDir() string {
	return filepath.Join(l.root, storageDir, "meta")
}

// LogsDir holds the action log and the application log.
func (l Layout) LogsDir() string {
	return filepath.Join(l.root, storageDir, "logs")
}

// ActionLogPath returns the process-wide JSONL audit log.
func (l Layout) ActionLogPath() string {
	return filepath.Join(l.LogsDir(), "actions.log")
}

// AppLogPath returns the application log.
func (l Layout) AppLogPath() string {
	return filepath.Join(l.LogsDir(), "docdesk.log")
}

// SidecarPath returns the per-document JSON side-car beside files in state.
func (l Layout) SidecarPath(state record.State, docID string) string {
	return filepath.Join(l.StateDir(state), docID+".json")
}

// Dirs lists every directory the layout expects to exist.
func (l Layout) Dirs() []string {
	dirs := make([]string, 0, len(record.AllStates())+2)
	for _, state := range record.AllStates() {
		dirs = append(dirs, l.StateDir(state))
	}
	return append(dirs, l.MetaDir(), l.LogsDir())
}

// Abs converts a root-relative slash path into an absolute path. Paths that
// escape the root are rejected.
func (l Layout) Abs(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	clean := path.Clean(filepath.ToSlash(rel))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes storage root", rel)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Rel converts an absolute path beneath the root into a root-relative slash path.
func (l Layout) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", fmt.Errorf("relativize %q: %w", abs, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %q is outside storage root", abs)
	}
	return rel, nil
}

// StateOf reports which canonical state directory rel lives in.
func StateOf(rel string) (record.State, bool) {
	dir := path.Dir(path.Clean(filepath.ToSlash(rel)))
	for _, state := range record.AllStates() {
		if dir == StateRel(state) {
			return state, true
		}
	}
	return "", false
}
