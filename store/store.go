package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	// ErrJobNotFound is returned when a job is not found in the journal.
	ErrJobNotFound = errors.New("job not found")
)

var (
	jobsBucket = []byte("jobs")
)

// JobState represents the current state of a transfer job.
type JobState string

const (
	StatePending    JobState = "Pending"
	StateInProgress JobState = "InProgress"
	StateCompleted  JobState = "Completed"
	StateFailed     JobState = "Failed"
)

// JobRecord is the journal entry for one transfer job.
type JobRecord struct {
	ID               string   `json:"id"`
	Op               string   `json:"op"`
	SourcePath       string   `json:"source_path"`
	DestinationPath  string   `json:"destination_path,omitempty"`
	State            JobState `json:"state"`
	BytesTransferred int64    `json:"bytes_transferred"`
	TotalBytes       int64    `json:"total_bytes"`
	Checksum         uint64   `json:"checksum,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Store defines the interface for tracking job state across runs.
type Store interface {
	SaveJob(job *JobRecord) error
	GetJob(id string) (*JobRecord, error)
	// ListJobs returns every record ordered by ID.
	ListJobs() ([]*JobRecord, error)
	// Reset drops every record.
	Reset() error
	Close() error
}

// BoltStore is a Store implementation backed by bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the journal at the given path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveJob saves a job to the journal.
func (s *BoltStore) SaveJob(job *JobRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(jobsBucket)

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := b.Put([]byte(job.ID), data); err != nil {
			return fmt.Errorf("failed to put job: %w", err)
		}
		return nil
	})
}

// GetJob retrieves a job from the journal.
func (s *BoltStore) GetJob(id string) (*JobRecord, error) {
	var job JobRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(jobsBucket).Get([]byte(id))
		if data == nil {
			return ErrJobNotFound
		}

		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// ListJobs returns every record in key order.
func (s *BoltStore) ListJobs() ([]*JobRecord, error) {
	var jobs []*JobRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(jobsBucket).ForEach(func(k, v []byte) error {
			var job JobRecord
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job %s: %w", k, err)
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Reset drops every record, leaving an empty journal.
func (s *BoltStore) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(jobsBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to drop jobs bucket: %w", err)
		}
		_, err := tx.CreateBucket(jobsBucket)
		return err
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
