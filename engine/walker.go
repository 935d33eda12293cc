package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/provider"
)

// LocalFile is a file selected by the walker.
type LocalFile struct {
	Path string
	Size int64
}

// WalkResult is the outcome of a directory walk.
type WalkResult struct {
	// Files holds the matched files in enumeration order.
	Files []LocalFile

	// Considered counts every regular file seen, matched or not.
	Considered int

	// Bytes is the total size of the matched files.
	Bytes int64
}

// Walker traverses a directory iteratively to collect files for upload.
// It avoids deep recursion to prevent stack overflows on very deep directory structures.
type Walker struct {
	Source provider.Provider
}

// NewWalker creates a new iterative directory walker.
func NewWalker(src provider.Provider) *Walker {
	return &Walker{Source: src}
}

// Walk collects every file below root whose name ends with suffix. An empty
// suffix matches everything. A missing, unreadable or non-directory root is
// reported as an *errs.IOError.
func (w *Walker) Walk(ctx context.Context, root, suffix string) (*WalkResult, error) {
	stat, err := w.Source.Stat(ctx, root)
	if err != nil {
		return nil, &errs.IOError{Op: "walk", Path: root, Err: err}
	}
	if !stat.IsDir() {
		return nil, &errs.IOError{Op: "walk", Path: root, Err: fmt.Errorf("not a directory")}
	}

	result := &WalkResult{}
	stack := []string{root}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Pop item
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := w.Source.List(ctx, dir)
		if err != nil {
			return nil, &errs.IOError{Op: "walk", Path: dir, Err: err}
		}

		// Subdirectories are pushed in reverse so they pop in listing order.
		var subdirs []string
		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				subdirs = append(subdirs, entryPath)
				continue
			}

			result.Considered++
			if !strings.HasSuffix(entry.Name(), suffix) {
				continue
			}
			result.Files = append(result.Files, LocalFile{Path: entryPath, Size: entry.Size()})
			result.Bytes += entry.Size()
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return result, nil
}
