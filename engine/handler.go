package engine

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/franksops/s3xfer/errs"
	"github.com/franksops/s3xfer/provider"
)

// DefaultContentType is assigned when nothing better can be determined.
const DefaultContentType = "binary/octet-stream"

// DefaultBufferSize is the per-worker copy buffer used for downloads.
const DefaultBufferSize = 1 << 20

// DetectContentType guesses a MIME type from the file extension, falling
// back to sniffing the file contents.
func DetectContentType(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}

	m, err := mimetype.DetectFile(path)
	if err != nil || m.Is("application/octet-stream") {
		return DefaultContentType
	}
	return m.String()
}

// Transfer is the per-worker Handler. It owns one object store connection
// and one copy buffer, so it must not be shared between workers.
type Transfer struct {
	Store provider.ObjectStore
	Local provider.Provider

	// ContentType governs the post-upload content type assignment.
	ContentType RetryPolicy

	Log logrus.FieldLogger

	buf []byte
}

// NewTransfer creates a handler for one worker.
func NewTransfer(store provider.ObjectStore, local provider.Provider, policy RetryPolicy, log logrus.FieldLogger) *Transfer {
	return &Transfer{
		Store:       store,
		Local:       local,
		ContentType: policy,
		Log:         log,
		buf:         make([]byte, DefaultBufferSize),
	}
}

// Handle performs the job according to its Op.
func (t *Transfer) Handle(ctx context.Context, job TransferJob) (Outcome, error) {
	switch job.Op {
	case OpUpload:
		return t.upload(ctx, job)
	case OpDownload:
		return t.download(ctx, job)
	case OpRemove:
		return Outcome{}, t.Store.Remove(ctx, job.SourcePath)
	case OpCopy:
		if err := t.Store.Copy(ctx, job.SourcePath, job.DestinationPath); err != nil {
			return Outcome{}, err
		}
		return Outcome{Bytes: job.Size}, nil
	}
	return Outcome{}, fmt.Errorf("unknown operation %q", job.Op)
}

// upload puts the file, then assigns its content type and finally its tags.
// Content type assignment is best effort: when it keeps failing the object
// stays in place and tagging is skipped.
func (t *Transfer) upload(ctx context.Context, job TransferJob) (Outcome, error) {
	f, err := t.Local.OpenRead(ctx, job.SourcePath)
	if err != nil {
		return Outcome{}, &errs.IOError{Op: "open", Path: job.SourcePath, Err: err}
	}
	defer f.Close()

	body := NewChecksumReader(f)
	if err := t.Store.Put(ctx, job.DestinationPath, body, ""); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Bytes: body.BytesRead(), Checksum: body.Checksum()}

	contentType := DetectContentType(job.SourcePath)
	err = t.ContentType.Do(ctx, func(ctx context.Context) error {
		return t.Store.SetContentType(ctx, job.DestinationPath, contentType)
	})
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if contentType != DefaultContentType {
			t.logger().Warnf("Could not setxattr to %s for %s", contentType, job.DestinationPath)
		}
		t.logger().WithError(err).Debugf("content type not set on %s", job.DestinationPath)
		return out, nil
	}

	if len(job.Tags) == 0 {
		return out, nil
	}
	if err := t.Store.SetTags(ctx, job.DestinationPath, job.Tags); err != nil {
		return out, err
	}
	return out, nil
}

// download streams the object into a part file beside the destination, which
// is renamed into place and given the object's modification time.
func (t *Transfer) download(ctx context.Context, job TransferJob) (Outcome, error) {
	body, entry, err := t.Store.Get(ctx, job.SourcePath)
	if err != nil {
		return Outcome{}, err
	}
	defer body.Close()

	w, err := t.Local.OpenWrite(ctx, job.DestinationPath, entry.ModTime)
	if err != nil {
		return Outcome{}, &errs.IOError{Op: "create", Path: job.DestinationPath, Err: err}
	}

	if t.buf == nil {
		t.buf = make([]byte, DefaultBufferSize)
	}
	sink := &localSink{w: w}
	cw := NewChecksumWriter(sink)
	if _, err := io.CopyBuffer(cw, body, t.buf); err != nil {
		provider.Abort(w)
		if sink.err != nil {
			return Outcome{}, &errs.IOError{Op: "write", Path: job.DestinationPath, Err: sink.err}
		}
		bucket, key, _ := provider.SplitPath(job.SourcePath)
		return Outcome{}, errs.Remote("get", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return Outcome{}, &errs.IOError{Op: "write", Path: job.DestinationPath, Err: err}
	}

	return Outcome{Bytes: cw.BytesWritten(), Checksum: cw.Checksum()}, nil
}

// localSink keeps the first error of the local side of a download so it is
// not mistaken for a failed read.
type localSink struct {
	w   io.Writer
	err error
}

func (s *localSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil && s.err == nil {
		s.err = err
	}
	return n, err
}

func (t *Transfer) logger() logrus.FieldLogger {
	if t.Log == nil {
		return logrus.StandardLogger()
	}
	return t.Log
}
