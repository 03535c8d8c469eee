package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fruitsalade/dirfetch/internal/metrics"
)

// Local writes below a directory of the local filesystem.
type Local struct {
	root string
}

// NewLocal returns a sink rooted at root. An empty root is the working
// directory.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat destination %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", root)
	}
	return &Local{root: root}, nil
}

func (l *Local) fullPath(name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Exists implements Sink. Dangling symlinks count as present.
func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	path, err := l.fullPath(name)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// Remove implements Sink. A symlink is unlinked, never followed.
func (l *Local) Remove(_ context.Context, name string) error {
	start := time.Now()
	path, err := l.fullPath(name)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		metrics.RecordSinkOperation("local", "remove", time.Since(start), false)
		return fmt.Errorf("can't remove %s: %w", name, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	metrics.RecordSinkOperation("local", "remove", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("can't remove %s: %w", name, err)
	}
	return nil
}

// Mkdir implements Sink.
func (l *Local) Mkdir(_ context.Context, name string) error {
	start := time.Now()
	path, err := l.fullPath(name)
	if err != nil {
		return err
	}
	err = os.Mkdir(path, 0755)
	metrics.RecordSinkOperation("local", "mkdir", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("create directory %s: %w", name, err)
	}
	return nil
}

// WriteFile implements Sink. Content is written atomically (temp file then
// rename).
func (l *Local) WriteFile(_ context.Context, name string, data []byte) error {
	start := time.Now()
	path, err := l.fullPath(name)
	if err != nil {
		return err
	}
	err = writeAtomic(path, data)
	metrics.RecordSinkOperation("local", "write", time.Since(start), err == nil)
	return err
}

func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()

	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("write content: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Location implements Sink.
func (l *Local) Location(name string) string {
	if l.root == "." {
		return filepath.FromSlash(name)
	}
	return filepath.Join(l.root, filepath.FromSlash(name))
}

// Type implements Sink.
func (l *Local) Type() string {
	return "local"
}
