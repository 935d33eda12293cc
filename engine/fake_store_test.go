package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/provider"
)

// fakeStore is an in-memory provider.ObjectStore.
type fakeStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	tags         map[string]map[string]string
	modTime      time.Time

	// failing paths return an error from every call
	failing map[string]error
	// contentTypeFailures makes the first n SetContentType calls fail
	contentTypeFailures int
	contentTypeCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		tags:         make(map[string]map[string]string),
		failing:      make(map[string]error),
	}
}

func (f *fakeStore) fail(path string) error {
	if err, ok := f.failing[path]; ok {
		return err
	}
	return nil
}

func (f *fakeStore) List(ctx context.Context, path string, recursive bool) ([]provider.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []provider.Entry
	prefix := strings.TrimSuffix(path, "/") + "/"
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, provider.Entry{Key: k, Size: int64(len(v)), Type: provider.TypeFile})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) Stat(ctx context.Context, path string) (provider.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return provider.Entry{}, errs.Remote("head", "", path, errs.ErrNotFound)
	}
	return provider.Entry{Key: path, Size: int64(len(data)), Type: provider.TypeFile, ModTime: f.modTime}, nil
}

func (f *fakeStore) Get(ctx context.Context, path string) (io.ReadCloser, provider.Entry, error) {
	if err := f.fail(path); err != nil {
		return nil, provider.Entry{}, err
	}
	entry, err := f.Stat(ctx, path)
	if err != nil {
		return nil, provider.Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.objects[path])), entry, nil
}

func (f *fakeStore) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	if err := f.fail(path); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, path string) error {
	if err := f.fail(path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[path]; !ok {
		return errs.Remote("rm", "", path, errs.ErrNotFound)
	}
	delete(f.objects, path)
	return nil
}

func (f *fakeStore) SetTags(ctx context.Context, path string, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[path] = tags
	return nil
}

func (f *fakeStore) SetContentType(ctx context.Context, path string, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentTypeCalls++
	if f.contentTypeCalls <= f.contentTypeFailures {
		return fmt.Errorf("setxattr attempt %d failed", f.contentTypeCalls)
	}
	f.contentTypes[path] = contentType
	return nil
}

func (f *fakeStore) Copy(ctx context.Context, src, dst string) error {
	if err := f.fail(src); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[src]
	if !ok {
		return errs.Remote("copy", "", dst, errs.ErrNotFound)
	}
	f.objects[dst] = append([]byte(nil), data...)
	return nil
}
