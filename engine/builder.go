package engine

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/provider"
)

// UploadRoot is the remote prefix a walked source directory is uploaded
// under: the bucket joined with the directory's stem.
func UploadRoot(bucket, sourceDir string) string {
	base := filepath.Base(filepath.Clean(sourceDir))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return path.Join(strings.TrimSuffix(bucket, "/"), stem)
}

// RepeatTags returns n references to tags, or nil when tags is empty.
func RepeatTags(tags Tags, n int) []Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tags, n)
	for i := range out {
		out[i] = tags
	}
	return out
}

func checkTags(n int, tags []Tags) error {
	if tags != nil && len(tags) != n {
		return errs.Configf("tag list has %d entries for %d sources", len(tags), n)
	}
	return nil
}

func tagAt(tags []Tags, i int) Tags {
	if tags == nil {
		return nil
	}
	return tags[i]
}

// BuildUploadJobs maps walked files to keys below destRoot, preserving each
// file's path relative to sourceRoot.
func BuildUploadJobs(files []LocalFile, sourceRoot, destRoot string, tags []Tags) ([]TransferJob, error) {
	if err := checkTags(len(files), tags); err != nil {
		return nil, err
	}

	jobs := make([]TransferJob, 0, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(sourceRoot, f.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, errs.Configf("%s is not below %s", f.Path, sourceRoot)
		}
		dst := path.Join(destRoot, filepath.ToSlash(rel))
		jobs = append(jobs, newJob(OpUpload, f.Path, dst, f.Size, tagAt(tags, i)))
	}
	return jobs, nil
}

// DownloadDestination replaces the bucket segment of key with basedir.
func DownloadDestination(key, basedir string) string {
	_, rest, _ := strings.Cut(strings.TrimPrefix(key, "s3://"), "/")
	return filepath.Join(basedir, filepath.FromSlash(rest))
}

// BuildDownloadJobs creates one download per remote entry. Directory
// entries are skipped.
func BuildDownloadJobs(entries []provider.Entry, basedir string) []TransferJob {
	jobs := make([]TransferJob, 0, len(entries))
	for _, e := range entries {
		if e.Type == provider.TypeDirectory {
			continue
		}
		jobs = append(jobs, newJob(OpDownload, e.Key, DownloadDestination(e.Key, basedir), e.Size, nil))
	}
	return jobs
}

// BuildRemoveJobs creates one removal per key.
func BuildRemoveJobs(keys []string) []TransferJob {
	jobs := make([]TransferJob, 0, len(keys))
	for _, k := range keys {
		jobs = append(jobs, newJob(OpRemove, k, "", 0, nil))
	}
	return jobs
}

// BuildPairJobs creates jobs from two-column order file lines.
func BuildPairJobs(op Op, lines []OrderLine, tags []Tags) ([]TransferJob, error) {
	if err := checkTags(len(lines), tags); err != nil {
		return nil, err
	}

	jobs := make([]TransferJob, 0, len(lines))
	for i, l := range lines {
		if l.Destination == "" {
			return nil, errs.Configf("order line %q has no destination", l.Source)
		}
		jobs = append(jobs, newJob(op, l.Source, l.Destination, 0, tagAt(tags, i)))
	}
	return jobs, nil
}

// Sources returns the first column of each line.
func Sources(lines []OrderLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Source
	}
	return out
}

// StatSources fills in the size of every job whose source is a local file
// and returns the total.
func StatSources(ctx context.Context, local provider.Provider, jobs []TransferJob) (int64, error) {
	var total int64
	for i := range jobs {
		info, err := local.Stat(ctx, jobs[i].SourcePath)
		if err != nil {
			return 0, &errs.IOError{Op: "stat", Path: jobs[i].SourcePath, Err: err}
		}
		jobs[i].Size = info.Size()
		total += info.Size()
	}
	return total, nil
}

// TotalSize sums the known sizes of jobs.
func TotalSize(jobs []TransferJob) int64 {
	var total int64
	for _, j := range jobs {
		total += j.Size
	}
	return total
}
