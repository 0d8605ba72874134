// Package artifact stores uploaded files on disk. Inject responses use
// deterministic names so a re-upload replaces the previous submission.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrFile wraps filesystem failures during artifact writes.
var ErrFile = errors.New("artifact: file error")

// Extension returns the last dot-segment of a filename, lowercased and
// without the dot; empty when the name has no extension.
func Extension(filename string) string {
	base := filepath.Base(filename)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// Write stores data at dir/filename, creating the directory as needed and
// overwriting any previous file of the same name.
func Write(dir, filename string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFile, err)
	}
	return nil
}

// SafeBase strips any path components from a client-supplied filename.
func SafeBase(filename string) string {
	base := filepath.Base(filepath.Clean(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
