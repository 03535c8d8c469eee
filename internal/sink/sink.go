// Package sink defines where downloaded files are written. Names passed to
// a Sink are slash-separated paths relative to the sink root.
package sink

import (
	"context"
	"fmt"
	"strings"
)

// Sink is a download destination.
type Sink interface {
	// Exists reports whether name is already present as a file, link or
	// directory.
	Exists(ctx context.Context, name string) (bool, error)

	// Remove deletes name. Directories are removed with their contents.
	Remove(ctx context.Context, name string) error

	// Mkdir creates the directory name. Its parent must exist.
	Mkdir(ctx context.Context, name string) error

	// WriteFile stores data under name, replacing any previous content.
	WriteFile(ctx context.Context, name string, data []byte) error

	// Location returns a human-readable location for name.
	Location(name string) string

	// Type returns the sink type identifier ("local", "s3").
	Type() string
}

// CleanName validates a relative sink name.
func CleanName(name string) (string, error) {
	name = strings.Trim(name, "/")
	if name == "" {
		return "", fmt.Errorf("empty destination name")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("invalid destination name %q", name)
		}
	}
	return name, nil
}
