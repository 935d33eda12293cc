package engine

import "fmt"

// Op is the kind of transfer a job performs.
type Op string

const (
	OpUpload   Op = "put"
	OpDownload Op = "get"
	OpRemove   Op = "rm"
	OpCopy     Op = "copy"
)

// Tags is an S3 object tag set.
type Tags map[string]string

// TransferJob is one unit of work for the worker pool. Jobs are built once,
// handed to exactly one worker and never modified.
type TransferJob struct {
	// ID identifies the job in the journal.
	ID string

	Op Op

	// SourcePath is a local path for uploads and a "bucket/key" otherwise.
	SourcePath string

	// DestinationPath is a "bucket/key" for uploads and copies, a local path
	// for downloads and empty for removals.
	DestinationPath string

	// Size is the expected byte count when known up front.
	Size int64

	// Tags are applied after an upload. Nil means no tagging.
	Tags Tags
}

func newJob(op Op, src, dst string, size int64, tags Tags) TransferJob {
	return TransferJob{
		ID:              jobID(op, src, dst),
		Op:              op,
		SourcePath:      src,
		DestinationPath: dst,
		Size:            size,
		Tags:            tags,
	}
}

func jobID(op Op, src, dst string) string {
	if dst == "" {
		return fmt.Sprintf("%s:%s", op, src)
	}
	return fmt.Sprintf("%s:%s->%s", op, src, dst)
}

// Verb names the operation in user-facing failure messages.
func (o Op) Verb() string {
	switch o {
	case OpDownload:
		return "get"
	case OpRemove:
		return "remove"
	}
	return "put"
}

// Subject is the path named in the failure message for a job.
func (j TransferJob) Subject() string {
	switch j.Op {
	case OpUpload, OpCopy:
		return j.DestinationPath
	}
	return j.SourcePath
}
