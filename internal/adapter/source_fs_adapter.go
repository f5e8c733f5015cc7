// Package adapter contains the infrastructure adapters of rads: cargo and
// rustc integration, the Rust parser, file system access and report sinks.
package adapter

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	m "rads.dev/pkg/rads/internal/model"
)

// manifestName is the cargo manifest file.
const manifestName = "Cargo.toml"

// SourceFSAdapter abstracts filesystem-specific operations that the domain layer
// relies on when scanning packages, so the workflow can be tested without
// touching the disk.
type SourceFSAdapter interface {
	// Walk traverses the provided root path. When recursive is false the
	// implementation should limit itself to the root directory (no sub-dirs).
	Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error

	// RustFiles lists the .rs files of the package rooted at root, sorted.
	// Build output, hidden directories and nested packages are skipped.
	RustFiles(root m.Path) ([]m.Path, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// FileInfo returns metadata for a path.
	FileInfo(path m.Path) (os.FileInfo, error)

	// FindProjectRoot searches for Cargo.toml walking up the directory tree.
	// Relative start paths are resolved against the working directory.
	FindProjectRoot(startPath m.Path) (m.Path, error)

	// RelPath returns the relative path from base to target.
	RelPath(base, target m.Path) (m.Path, error)
}

// FilepathWalkFunc mirrors the callback shape used by filepath.Walk. It is
// defined here to avoid leaking the standard-library type into the domain layer.
type FilepathWalkFunc func(path string, info os.FileInfo, err error) error

// LocalSourceFSAdapter is the os backed SourceFSAdapter.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// Walk iterates over files under root, optionally descending into subdirectories.
func (a *LocalSourceFSAdapter) Walk(root m.Path, recursive bool, fn FilepathWalkFunc) error {
	rootStr := string(root)

	return filepath.Walk(rootStr, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(path, info, err)
		}

		if info.IsDir() && !recursive && path != rootStr {
			return filepath.SkipDir
		}

		return fn(path, info, nil)
	})
}

// RustFiles collects the package's Rust sources.
func (a *LocalSourceFSAdapter) RustFiles(root m.Path) ([]m.Path, error) {
	rootStr := filepath.Clean(string(root))

	var files []m.Path

	err := a.Walk(m.Path(rootStr), true, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path == rootStr {
				return nil
			}

			if skipDir(path) {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) == ".rs" {
			files = append(files, m.Path(path))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rust files in %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return files, nil
}

func skipDir(path string) bool {
	base := filepath.Base(path)
	if base == "target" || strings.HasPrefix(base, ".") {
		return true
	}

	// A nested manifest starts another package, which is scanned on its own.
	_, err := os.Stat(filepath.Join(path, manifestName))

	return err == nil
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// FindProjectRoot returns the nearest directory at or above startPath holding a Cargo.toml.
func (a *LocalSourceFSAdapter) FindProjectRoot(startPath m.Path) (m.Path, error) {
	dir, err := filepath.Abs(string(startPath))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", startPath, err)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, manifestName)); err == nil {
			return m.Path(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found in any parent directory of %s", manifestName, startPath)
		}

		dir = parent
	}
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// HashBytes returns the SHA-256 hex digest of content.
func HashBytes(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
