package storage

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/denisAlshanov/mediafetch/internal/config"
)

// Local is the directory downloads are written into and served from.
type Local struct {
	dir string
}

// Resolve picks the storage directory for the deployment mode: the
// configured folder (created if needed) for a persistent server, the
// platform temp directory for serverless.
func Resolve(mode config.Mode, downloadDir string) (*Local, error) {
	dir := downloadDir
	if mode == config.ModeServerless {
		dir = os.TempDir()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory %q: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %q: %w", abs, err)
	}

	return &Local{dir: abs}, nil
}

// Dir is the absolute storage directory.
func (l *Local) Dir() string {
	return l.dir
}

// FileSystem exposes the directory to http.FileServer, which rejects
// names escaping the root.
func (l *Local) FileSystem() http.FileSystem {
	return http.Dir(l.dir)
}

// Rel returns p relative to the storage directory.
func (l *Local) Rel(p string) (string, error) {
	rel, err := filepath.Rel(l.dir, p)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside the storage directory", p)
	}
	return filepath.ToSlash(rel), nil
}

// Open opens the regular file name inside the directory. name uses
// forward slashes, as in a URL, and cannot climb above the root.
func (l *Local) Open(name string) (http.File, os.FileInfo, error) {
	f, err := l.FileSystem().Open(CleanName(name))
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%q is a directory", name)
	}
	return f, info, nil
}

// Exists reports whether name is a regular file inside the directory.
func (l *Local) Exists(name string) bool {
	f, _, err := l.Open(name)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Writable checks that a file can be created in the directory.
func (l *Local) Writable() error {
	f, err := os.CreateTemp(l.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// CleanName normalizes a client-supplied name to a rooted slash path,
// dropping any ".." that would climb above the root.
func CleanName(name string) string {
	return path.Clean("/" + name)
}

// ObjectKey maps a stored file name to its key in the object store.
func ObjectKey(prefix, name string) string {
	return prefix + strings.TrimPrefix(CleanName(name), "/")
}
