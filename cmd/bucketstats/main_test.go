package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/provider"
)

type stubBuckets []string

func (s stubBuckets) Buckets(ctx context.Context) ([]string, error) { return s, nil }

type stubSource struct {
	metrics map[string]provider.BucketMetrics
	ends    []time.Time
	err     error
}

func (s *stubSource) BucketStats(ctx context.Context, bucket string, end time.Time, statistic string) (provider.BucketMetrics, error) {
	s.ends = append(s.ends, end)
	if s.err != nil {
		return provider.BucketMetrics{}, s.err
	}
	return s.metrics[bucket], nil
}

func TestReport(t *testing.T) {
	source := &stubSource{metrics: map[string]provider.BucketMetrics{
		"janelia-flylight-imagery": {Bucket: "janelia-flylight-imagery", SizeBytes: 2048, Objects: 3},
		"beta": {Bucket: "beta", SizeBytes: 1024, Objects: 1},
	}}
	now := time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, report(context.Background(), stubBuckets{"janelia-flylight-imagery", "beta"}, source, "Maximum", now, &out))

	assert.Equal(t, "name\tbytes\tobjects\n"+
		"janelia-flylight-imagery\t2.0Ki\t3\n"+
		"beta\t1.0Ki\t1\n"+
		"TOTAL\t3.0Ki\t4\n", out.String())

	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{midnight, midnight}, source.ends)
}

func TestReport_MissingDatapoints(t *testing.T) {
	source := &stubSource{metrics: map[string]provider.BucketMetrics{}}

	var out bytes.Buffer
	require.NoError(t, report(context.Background(), stubBuckets{"empty"}, source, "Maximum", time.Now(), &out))
	assert.Equal(t, "name\tbytes\tobjects\nempty\t0.0B\t0\nTOTAL\t0.0B\t0\n", out.String())
}

func TestReport_Error(t *testing.T) {
	source := &stubSource{err: errors.New("throttled")}
	var out bytes.Buffer
	err := report(context.Background(), stubBuckets{"alpha"}, source, "Maximum", time.Now(), &out)
	assert.EqualError(t, err, "throttled")
}

func TestCommand_UnknownMetric(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmd := newCommand()
	cmd.SetArgs([]string{"--metric", "Median"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), "Median")
}

func TestApplyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s3xfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metric: Average\nregion: eu-west-1\nprofile: ops\n"), 0644))

	cmd := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--region", "us-west-2"}))

	opts := options{region: "us-west-2", metric: "Maximum", configPath: path}
	require.NoError(t, applyConfig(&opts, cmd.Flags()))

	assert.Equal(t, "Average", opts.metric)
	assert.Equal(t, "ops", opts.profile)
	assert.Equal(t, "us-west-2", opts.region, "flag wins over the file")
}
