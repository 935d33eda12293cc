package provider

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

// partSuffix marks a download that has not completed yet.
const partSuffix = ".part"

type localFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (l *localFileInfo) Name() string       { return l.name }
func (l *localFileInfo) Size() int64        { return l.size }
func (l *localFileInfo) IsDir() bool        { return l.isDir }
func (l *localFileInfo) ModTime() time.Time { return l.modTime }

func wrapFileInfo(info os.FileInfo) FileInfo {
	return &localFileInfo{
		name:    info.Name(),
		size:    info.Size(),
		isDir:   info.IsDir(),
		modTime: info.ModTime(),
	}
}

// LocalProvider implements the Provider interface for posix-compliant local filesystems.
type LocalProvider struct {
	basePath string
}

// NewLocalProvider creates a new LocalProvider rooted at basePath.
// If basePath is empty, it acts upon absolute or relative paths directly.
func NewLocalProvider(basePath string) *LocalProvider {
	return &LocalProvider{basePath: basePath}
}

func (p *LocalProvider) resolve(path string) string {
	if p.basePath == "" {
		return path
	}
	return filepath.Join(p.basePath, filepath.Clean(path))
}

func (p *LocalProvider) Stat(ctx context.Context, path string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(p.resolve(path))
	if err != nil {
		return nil, err
	}
	return wrapFileInfo(info), nil
}

// List returns the entries of a directory. A link to a file reports the
// target's size. Links to directories and dangling links are skipped, so a
// walk never visits a file twice or loops.
func (p *LocalProvider) List(ctx context.Context, path string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath := p.resolve(path)
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		var info os.FileInfo
		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(filepath.Join(fullPath, entry.Name()))
			if err != nil || target.IsDir() {
				continue
			}
			// keep the link's own name
			infos = append(infos, &localFileInfo{
				name:    entry.Name(),
				size:    target.Size(),
				modTime: target.ModTime(),
			})
			continue
		}
		info, err = entry.Info()
		if err != nil {
			continue // skip files that disappeared between ReadDir and Info
		}
		infos = append(infos, wrapFileInfo(info))
	}
	return infos, nil
}

func (p *LocalProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(p.resolve(path))
}

// OpenWrite writes to a sibling ".part" file which is renamed over path on a
// successful Close. A non-zero modTime is applied to the finished file.
func (p *LocalProvider) OpenWrite(ctx context.Context, path string, modTime time.Time) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath := p.resolve(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(fullPath+partSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	return &localWriteCloser{
		File:     file,
		fullPath: fullPath,
		modTime:  modTime,
	}, nil
}

// localWriteCloser renames the part file into place on Close.
type localWriteCloser struct {
	*os.File
	fullPath string
	modTime  time.Time
	failed   bool
}

func (l *localWriteCloser) Write(b []byte) (int, error) {
	n, err := l.File.Write(b)
	if err != nil {
		l.failed = true
	}
	return n, err
}

func (l *localWriteCloser) Close() error {
	partPath := l.File.Name()
	if err := l.File.Close(); err != nil {
		os.Remove(partPath)
		return err
	}
	if l.failed {
		os.Remove(partPath)
		return nil
	}

	if err := os.Rename(partPath, l.fullPath); err != nil {
		os.Remove(partPath)
		return err
	}

	if !l.modTime.IsZero() {
		// Ignore errors on applying timestamp
		_ = os.Chtimes(l.fullPath, time.Now(), l.modTime)
	}
	return nil
}

// Abort discards a partially written file.
func Abort(w io.WriteCloser) {
	if l, ok := w.(*localWriteCloser); ok {
		l.failed = true
	}
	w.Close()
}
