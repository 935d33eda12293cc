// Package errs defines the error taxonomy shared by the s3xfer tools.
//
// Three kinds of failure are distinguished: configuration errors are found
// before any I/O happens, IO errors come from the local filesystem and remote
// errors come from the object store. Callers use errors.As to pick the kind
// and errors.Is with the sentinels below to classify remote failures.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a bucket, key or prefix does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates rejected or missing credentials.
	ErrAccessDenied = errors.New("access denied")
)

// ConfigurationError reports missing or contradictory options.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IOError reports a failure on the local filesystem.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// RemoteError reports a failed object store call.
type RemoteError struct {
	// Op is the store operation, e.g. "put", "get", "tag".
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("s3.%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Remote wraps err as a RemoteError unless it is nil.
func Remote(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Bucket: bucket, Key: key, Err: err}
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// TypeName returns the name of the concrete error kind for diagnostics.
func TypeName(err error) string {
	var (
		ce *ConfigurationError
		ie *IOError
		re *RemoteError
	)
	switch {
	case errors.As(err, &ce):
		return "ConfigurationError"
	case errors.As(err, &ie):
		return "IOError"
	case errors.As(err, &re):
		return "RemoteError"
	}
	return fmt.Sprintf("%T", err)
}
