package provider

import (
	"context"
	"io"
	"time"
)

// FileInfo represents the standard metadata for a local file or directory.
type FileInfo interface {
	Name() string
	Size() int64
	IsDir() bool
	ModTime() time.Time
}

// Provider is the local filesystem capability used by the walker and by the
// download and upload handlers.
type Provider interface {
	// Stat returns the FileInfo for the given path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the contents of the given directory.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// OpenRead opens a file for streaming reads.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite opens a file for streaming writes. The file only appears
	// under path once the writer is closed successfully.
	OpenWrite(ctx context.Context, path string, modTime time.Time) (io.WriteCloser, error)
}

// EntryType distinguishes objects from common prefixes in a listing.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "directory"
)

// Entry is one item of a remote listing. Key is the full "bucket/key" path.
type Entry struct {
	Key     string
	Size    int64
	Type    EntryType
	ModTime time.Time
}

// ObjectStore is the remote object storage capability. All paths are
// "bucket/key" strings; an optional "s3://" scheme is accepted.
type ObjectStore interface {
	// List returns the immediate children of path, or every object below it
	// when recursive is set.
	List(ctx context.Context, path string, recursive bool) ([]Entry, error)

	// Stat returns metadata for a single object.
	Stat(ctx context.Context, path string) (Entry, error)

	// Get opens an object for streaming reads.
	Get(ctx context.Context, path string) (io.ReadCloser, Entry, error)

	// Put writes body to path. contentType may be empty.
	Put(ctx context.Context, path string, body io.Reader, contentType string) error

	// Remove deletes a single object.
	Remove(ctx context.Context, path string) error

	// SetTags replaces the tag set of an object.
	SetTags(ctx context.Context, path string, tags map[string]string) error

	// SetContentType rewrites the Content-Type of an existing object.
	SetContentType(ctx context.Context, path string, contentType string) error

	// Copy performs a server-side copy from src to dst.
	Copy(ctx context.Context, src, dst string) error
}
