// internal/watch/tracker.go
package watch

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"qvcs/internal/diff"
	"qvcs/internal/quantum"
	"qvcs/shared/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnchanged is returned when a file matches its last recorded content
var ErrUnchanged = stderrors.New("file unchanged")

var ignoreDirs = map[string]bool{
	".git":         true,
	".qvcs":        true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// ShouldIgnore checks if a repository-relative path should be ignored
func ShouldIgnore(path string) bool {
	if path == "" || path == "." {
		return true
	}

	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if ignoreDirs[part] {
			return true
		}
	}
	return false
}

// Tracker turns working-tree files into FileChanges against the content
// last recorded in the repository. A change's ContentDelta carries the file
// content after the change.
type Tracker struct {
	Root       string
	Repo       *quantum.Repository
	DiffEngine *diff.Engine
	logger     *zap.Logger
}

func NewTracker(root string, repo *quantum.Repository, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		Root:       root,
		Repo:       repo,
		DiffEngine: diff.NewEngine(3),
		logger:     logger,
	}
}

// previous returns the last recorded content of path, if the file is live
func (t *Tracker) previous(path string) ([]byte, bool) {
	last, ok := t.Repo.LastChange(path)
	if !ok || last.Operation.Type == shared.Delete || last.Operation.Type == shared.Move {
		return nil, false
	}
	return last.ContentDelta, true
}

// Change builds the change for one path: Insert for a file never seen,
// Modify for a known one, Delete for a known file that is gone.
func (t *Tracker) Change(relPath string) (shared.FileChange, error) {
	prev, live := t.previous(relPath)

	content, err := os.ReadFile(filepath.Join(t.Root, relPath))
	if stderrors.Is(err, fs.ErrNotExist) {
		if !live {
			return shared.FileChange{}, fmt.Errorf("file does not exist and was not tracked: %s", relPath)
		}
		return shared.FileChange{
			Path:         relPath,
			Operation:    shared.Operation{Type: shared.Delete},
			LineMappings: t.DiffEngine.Mappings(prev, nil),
		}, nil
	}
	if err != nil {
		return shared.FileChange{}, fmt.Errorf("reading file %s: %w", relPath, err)
	}

	op := shared.Insert
	if live {
		if bytes.Equal(prev, content) {
			return shared.FileChange{}, fmt.Errorf("%w: %s", ErrUnchanged, relPath)
		}
		op = shared.Modify
	}

	return shared.FileChange{
		Path:         relPath,
		Operation:    shared.Operation{Type: op},
		ContentDelta: content,
		LineMappings: t.DiffEngine.Mappings(prev, content),
	}, nil
}

// Move records oldPath as moved to newPath, carrying newPath's content
func (t *Tracker) Move(oldPath, newPath string) (shared.FileChange, error) {
	prev, live := t.previous(oldPath)
	if !live {
		return shared.FileChange{}, fmt.Errorf("file was not tracked: %s", oldPath)
	}

	content, err := os.ReadFile(filepath.Join(t.Root, newPath))
	if err != nil {
		return shared.FileChange{}, fmt.Errorf("reading file %s: %w", newPath, err)
	}

	return shared.FileChange{
		Path:         oldPath,
		Operation:    shared.MoveTo(newPath),
		ContentDelta: content,
		LineMappings: t.DiffEngine.Mappings(prev, content),
	}, nil
}

// Diff compares the working copy of path with its last recorded content
func (t *Tracker) Diff(relPath string) (*diff.DiffResult, error) {
	prev, _ := t.previous(relPath)

	content, err := os.ReadFile(filepath.Join(t.Root, relPath))
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading current file: %w", err)
	}
	return t.DiffEngine.Diff(prev, content), nil
}

// Commit registers the given changes plus one change per path. Unchanged
// paths are skipped; nothing to register is an error.
func (t *Tracker) Commit(paths []string, extra []shared.FileChange, probabilities map[string]float64, opts ...quantum.CommitOption) (uuid.UUID, error) {
	changes := append([]shared.FileChange(nil), extra...)
	for _, p := range paths {
		rel, err := t.relative(p)
		if err != nil {
			return uuid.Nil, err
		}
		ch, err := t.Change(rel)
		if stderrors.Is(err, ErrUnchanged) {
			t.logger.Debug("skipping unchanged file", zap.String("path", rel))
			continue
		}
		if err != nil {
			return uuid.Nil, err
		}
		changes = append(changes, ch)
	}

	if len(changes) == 0 {
		return uuid.Nil, fmt.Errorf("no changes to commit")
	}
	return t.Repo.Register(changes, probabilities, opts...)
}

// relative normalizes a user-supplied path to one relative to Root
func (t *Tracker) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	rel, err := filepath.Rel(t.Root, path)
	if err != nil {
		return "", fmt.Errorf("getting relative path: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s is outside the repository", path)
	}
	return rel, nil
}
