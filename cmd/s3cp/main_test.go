package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksops/s3xfer/config"
	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/provider"
	"github.com/franksops/s3xfer/store"
)

// memStore is a minimal in-memory provider.ObjectStore shared by all workers.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	tags    map[string]map[string]string
	failPut map[string]bool
	opened  int
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string][]byte),
		tags:    make(map[string]map[string]string),
		failPut: make(map[string]bool),
	}
}

func (m *memStore) factory() provider.ObjectStore {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	return m
}

func (m *memStore) List(ctx context.Context, path string, recursive bool) ([]provider.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []provider.Entry
	for k, v := range m.objects {
		if strings.HasPrefix(k, strings.TrimSuffix(path, "/")+"/") {
			out = append(out, provider.Entry{Key: k, Size: int64(len(v)), Type: provider.TypeFile})
		}
	}
	if len(out) == 0 {
		return nil, errs.Remote("list", path, "", errs.ErrNotFound)
	}
	return out, nil
}

func (m *memStore) Stat(ctx context.Context, path string) (provider.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return provider.Entry{}, errs.Remote("head", path, "", errs.ErrNotFound)
	}
	return provider.Entry{Key: path, Size: int64(len(data)), Type: provider.TypeFile}, nil
}

func (m *memStore) Get(ctx context.Context, path string) (io.ReadCloser, provider.Entry, error) {
	entry, err := m.Stat(ctx, path)
	if err != nil {
		return nil, entry, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.objects[path])), entry, nil
}

func (m *memStore) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut[path] {
		return errs.Remote("put", "bucket", path, errs.ErrAccessDenied)
	}
	m.objects[path] = data
	return nil
}

func (m *memStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memStore) SetTags(ctx context.Context, path string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[path] = tags
	return nil
}

func (m *memStore) SetContentType(ctx context.Context, path string, contentType string) error {
	return nil
}

func (m *memStore) Copy(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[dst] = m.objects[src]
	return nil
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func runApp(t *testing.T, cfg *config.Config, ms *memStore) (string, error) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	err := newApp(cfg, &out, logger, ms.factory).run(context.Background())
	return out.String(), err
}

func TestUploadSources(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second.d")
	writeTree(t, first, map[string]string{"a.txt": "aa", "sub/b.log": "bbb"})
	writeTree(t, second, map[string]string{"c.txt": "c"})

	cfg := config.NewDefault()
	cfg.Sources = []string{first, second}
	cfg.Bucket = "bucket"
	cfg.Workers = 2
	cfg.Tags.Stage = "dev"

	ms := newMemStore()
	out, err := runApp(t, cfg, ms)
	require.NoError(t, err)

	assert.Contains(t, out, "Source "+first+"\n")
	assert.Contains(t, out, "Files selected: 2/2\nSize: 5.0B\n")
	assert.Contains(t, out, "Source "+second+"\n")
	assert.Contains(t, out, "Total files: 3\n")

	assert.Equal(t, []byte("aa"), ms.objects["bucket/first/a.txt"])
	assert.Equal(t, []byte("bbb"), ms.objects["bucket/first/sub/b.log"])
	assert.Equal(t, []byte("c"), ms.objects["bucket/second/c.txt"])
	assert.Equal(t, map[string]string{"stage_tag": "dev"}, ms.tags["bucket/second/c.txt"])
	assert.Equal(t, 3, ms.opened, "one connection per worker per round")
}

func TestUploadDryRun(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.log": "12345", "b.txt": "x"})

	cfg := config.NewDefault()
	cfg.Sources = []string{dir}
	cfg.Bucket = "bucket"
	cfg.EndsWith = ".log"
	cfg.DryRun = true

	ms := newMemStore()
	out, err := runApp(t, cfg, ms)
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(dir, "a.log")+"\n")
	assert.NotContains(t, out, "b.txt")
	assert.Contains(t, out, "Files selected: 1/2\n")
	assert.True(t, strings.HasSuffix(out, "Total files: 1\n"), out)
	assert.Empty(t, ms.objects)
}

func TestUploadOrderFile(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "file.txt")
	writeTree(t, dir, map[string]string{"file.txt": "hello"})
	order := filepath.Join(dir, "order.tsv")
	require.NoError(t, os.WriteFile(order, []byte(local+"\tbucket/remote/key.txt\n"), 0644))

	cfg := config.NewDefault()
	cfg.Order = order

	ms := newMemStore()
	out, err := runApp(t, cfg, ms)
	require.NoError(t, err)

	assert.Contains(t, out, "Files selected: 1\nSize: 5.0B\n")
	assert.Equal(t, []byte("hello"), ms.objects["bucket/remote/key.txt"])
}

func TestMalformedOrderFileStopsBeforeTransfers(t *testing.T) {
	dir := t.TempDir()
	order := filepath.Join(dir, "order.tsv")
	require.NoError(t, os.WriteFile(order, []byte("a\tb\nonly-one-column\n"), 0644))

	cfg := config.NewDefault()
	cfg.Order = order

	ms := newMemStore()
	_, err := runApp(t, cfg, ms)
	assert.True(t, errs.IsConfiguration(err))
	assert.Zero(t, ms.opened)
}

func TestDownloadAndRemove(t *testing.T) {
	ms := newMemStore()
	ms.objects["bucket/dir/a.txt"] = []byte("abc")
	ms.objects["bucket/dir/sub/b.txt"] = []byte("de")

	base := t.TempDir()
	cfg := config.NewDefault()
	cfg.Download = true
	cfg.Sources = []string{"bucket/dir"}
	cfg.Basedir = base

	out, err := runApp(t, cfg, ms)
	require.NoError(t, err)
	assert.Contains(t, out, "Files selected: 2\nSize: 5.0B\n")

	data, err := os.ReadFile(filepath.Join(base, "dir", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "de", string(data))

	order := filepath.Join(t.TempDir(), "rm.txt")
	require.NoError(t, os.WriteFile(order, []byte("bucket/dir/a.txt\n"), 0644))
	cfg = config.NewDefault()
	cfg.Delete = true
	cfg.Order = order

	out, err = runApp(t, cfg, ms)
	require.NoError(t, err)
	assert.Contains(t, out, "Files selected: 1\nTotal files: 1\n")
	assert.NotContains(t, ms.objects, "bucket/dir/a.txt")
}

func TestFailedJobReportsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})

	ms := newMemStore()
	root := "bucket/" + filepath.Base(dir)
	ms.failPut[root+"/b.txt"] = true

	cfg := config.NewDefault()
	cfg.Sources = []string{dir}
	cfg.Bucket = "bucket"
	cfg.Workers = 1
	cfg.KeepGoing = true
	cfg.Journal = filepath.Join(t.TempDir(), "journal.db")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "s3xfer.prom")

	out, err := runApp(t, cfg, ms)
	require.True(t, errors.Is(err, errReported))

	assert.Contains(t, out, "An error of type RemoteError occurred. Arguments:\n")
	assert.Contains(t, out, "Could not put "+root+"/b.txt\n")
	assert.Contains(t, out, "1 of 3 transfers failed\n")
	assert.Contains(t, ms.objects, root+"/c.txt", "keep-going runs the remaining jobs")

	journal, err := store.NewBoltStore(cfg.Journal)
	require.NoError(t, err)
	defer journal.Close()
	records, err := journal.ListJobs()
	require.NoError(t, err)
	require.Len(t, records, 3)

	metricsText, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `s3xfer_jobs_total{op="put",result="failed"} 1`)
}

func TestMergeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s3xfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\nbucket: from-file\nprofile: archive\n"), 0600))

	cmd := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--bucket", "from-flag", "--download"}))

	flagCfg := config.NewDefault()
	flagCfg.Download = true
	cfg, err := mergeConfig(flagCfg, flagValues{configPath: path, bucket: "from-flag", workers: 12}, cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Bucket)
	assert.Equal(t, 3, cfg.Workers, "unset flags keep the file value")
	assert.Equal(t, "archive", cfg.Profile)
	assert.True(t, cfg.Download)
}

func TestDiagnostic(t *testing.T) {
	err := &errs.IOError{Op: "walk", Path: "/nope", Err: os.ErrNotExist}
	assert.Equal(t, "An error of type IOError occurred. Arguments:\nwalk /nope: file does not exist", diagnostic(err))
}
