package engine

import (
	"errors"

	"github.com/franksops/s3xfer/store"
)

// JobTracker records job state in a journal so an interrupted run can be
// resumed without repeating finished transfers.
type JobTracker struct {
	store  store.Store
	resume bool
}

// NewJobTracker creates a JobTracker. With resume set, jobs already marked
// Completed in the journal are skipped.
func NewJobTracker(s store.Store, resume bool) *JobTracker {
	return &JobTracker{
		store:  s,
		resume: resume,
	}
}

// Resumable reports whether the job finished in an earlier run.
func (jt *JobTracker) Resumable(jobID string) bool {
	if !jt.resume {
		return false
	}
	record, err := jt.store.GetJob(jobID)
	return err == nil && record.State == store.StateCompleted
}

// InitJob records a job as pending.
func (jt *JobTracker) InitJob(job TransferJob) error {
	record := &store.JobRecord{
		ID:              job.ID,
		Op:              string(job.Op),
		SourcePath:      job.SourcePath,
		DestinationPath: job.DestinationPath,
		State:           store.StatePending,
		TotalBytes:      job.Size,
	}

	return jt.store.SaveJob(record)
}

// MarkInProgress updates a job's state to InProgress
func (jt *JobTracker) MarkInProgress(jobID string) error {
	return jt.update(jobID, func(record *store.JobRecord) {
		record.State = store.StateInProgress
	})
}

// MarkCompleted records a finished job with its byte count and checksum.
func (jt *JobTracker) MarkCompleted(jobID string, out Outcome) error {
	return jt.update(jobID, func(record *store.JobRecord) {
		record.State = store.StateCompleted
		record.BytesTransferred = out.Bytes
		record.Checksum = out.Checksum
		record.Error = ""
	})
}

// MarkFailed updates a job's state to Failed with an error message
func (jt *JobTracker) MarkFailed(jobID string, err error) error {
	return jt.update(jobID, func(record *store.JobRecord) {
		record.State = store.StateFailed
		if err != nil {
			record.Error = err.Error()
		}
	})
}

// Failed returns the journal records of every failed job.
func (jt *JobTracker) Failed() ([]*store.JobRecord, error) {
	records, err := jt.store.ListJobs()
	if err != nil {
		return nil, err
	}

	var failed []*store.JobRecord
	for _, r := range records {
		if r.State == store.StateFailed {
			failed = append(failed, r)
		}
	}
	return failed, nil
}

func (jt *JobTracker) update(jobID string, fn func(*store.JobRecord)) error {
	record, err := jt.store.GetJob(jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		record = &store.JobRecord{ID: jobID}
	} else if err != nil {
		return err
	}
	fn(record)
	return jt.store.SaveJob(record)
}
