// Package sink provides the file destinations used for schema documents and
// generated client modules.
//
// Paths handed to a sink are always relative, slash separated and clean; the
// sink decides where they actually live.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// OutputSink receives generated file content.
type OutputSink interface {
	// WriteFile writes content to the specified path, replacing any
	// previous content.
	WriteFile(ctx context.Context, path string, content []byte) error
}

// Store is an OutputSink that can also be read back, listed and pruned.
// The schema store and the client generator need all four to compare
// against previous output and to reconcile a directory.
type Store interface {
	OutputSink

	// ReadFile returns the content at path. A missing file returns an error
	// that wraps fs.ErrNotExist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Remove deletes the file at path. Removing a missing file is not an error.
	Remove(ctx context.Context, path string) error

	// List returns every file path in the store, sorted.
	List(ctx context.Context) ([]string, error)
}

// FilesystemSink writes to a directory on the local filesystem.
type FilesystemSink struct {
	// Root is the base directory for all operations.
	Root string

	// Mode is the file permission mode (default: 0644).
	Mode os.FileMode
}

// NewFilesystemSink creates a new FilesystemSink rooted at root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{
		Root: root,
		Mode: 0644,
	}
}

// resolve validates path and joins it onto the root, refusing anything that
// would land outside of it.
func (s *FilesystemSink) resolve(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}

	fullPath := filepath.Join(s.Root, filepath.FromSlash(path))

	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root directory: %q", path)
	}
	return fullPath, nil
}

// WriteFile writes content to path within the root directory.
// Parent directories are created as needed and the write is atomic
// (temp file + rename), so readers never observe a half-written file.
func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	mode := s.Mode
	if mode == 0 {
		mode = 0644
	}

	tempFile, err := os.CreateTemp(dir, ".vovk-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(content)
	closeErr := tempFile.Close()

	// Leftover temp files share the .vovk-*.tmp prefix and are skipped by List.
	cleanup := func() {
		_ = os.Remove(tempPath)
	}

	if writeErr != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", writeErr)
	}
	if closeErr != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile reads path from the root directory.
func (s *FilesystemSink) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

// Remove deletes path from the root directory. Empty parent directories are
// left in place.
func (s *FilesystemSink) Remove(ctx context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the root directory. A missing root yields an empty list.
func (s *FilesystemSink) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.Root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || isTempFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".vovk-") && strings.HasSuffix(name, ".tmp")
}

// MemorySink stores files in memory.
// All operations are thread-safe.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemorySink creates a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files: make(map[string][]byte),
	}
}

// WriteFile writes content to the in-memory store.
func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = clone(content)
	return nil
}

// ReadFile returns a copy of the stored content.
func (s *MemorySink) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return clone(content), nil
}

// Remove deletes path from the store.
func (s *MemorySink) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

// List returns the stored paths, sorted.
func (s *MemorySink) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Files returns a copy of all written files.
func (s *MemorySink) Files() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(s.files))
	for path, content := range s.files {
		result[path] = clone(content)
	}
	return result
}

// Get returns the content of a single file, or nil if not found.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[path]
	if !ok {
		return nil
	}
	return clone(content)
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// ValidatePath checks if a path is valid for output.
// Paths MUST be relative (no leading /), use / as separator,
// not contain .. components, and be clean (no ./, duplicate /).
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}

	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return errors.New("absolute paths not allowed")
	}

	// Windows drive letters are rejected on every platform.
	if len(path) >= 2 && path[1] == ':' && ((path[0] >= 'A' && path[0] <= 'Z') || (path[0] >= 'a' && path[0] <= 'z')) {
		return errors.New("absolute paths not allowed")
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errors.New("path traversal not allowed")
		}
	}

	slashed := filepath.ToSlash(path)
	if cleaned := filepath.ToSlash(filepath.Clean(slashed)); cleaned != slashed {
		return fmt.Errorf("path is not clean (expected %q, got %q)", cleaned, path)
	}

	return nil
}
