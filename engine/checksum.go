package engine

import (
	"fmt"
	"hash"
	"hash/crc64"
	"io"
)

// Transfers are fingerprinted with CRC-64/ISO so the journal records what
// was actually moved.
var crcTable = crc64.MakeTable(crc64.ISO)

// tally counts bytes and folds them into a running CRC64.
type tally struct {
	sum hash.Hash64
	n   int64
}

func newTally() tally {
	return tally{sum: crc64.New(crcTable)}
}

func (t *tally) add(p []byte) {
	t.n += int64(len(p))
	t.sum.Write(p)
}

// Checksum returns the CRC64 of every byte seen so far.
func (t *tally) Checksum() uint64 {
	return t.sum.Sum64()
}

// ChecksumWriter tallies bytes on their way to a local file. It must not
// implement io.ReaderFrom, or io.CopyBuffer would bypass the worker's buffer.
type ChecksumWriter struct {
	tally
	w io.Writer
}

// NewChecksumWriter wraps w.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{tally: newTally(), w: w}
}

func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.add(p[:n])
	return n, err
}

// BytesWritten returns the number of bytes the underlying writer accepted.
func (cw *ChecksumWriter) BytesWritten() int64 { return cw.n }

// ChecksumReader tallies an upload body as the SDK reads it.
type ChecksumReader struct {
	tally
	r io.Reader
}

// NewChecksumReader wraps r.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{tally: newTally(), r: r}
}

func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.add(p[:n])
	return n, err
}

// BytesRead returns the number of bytes handed to the reader's caller.
func (cr *ChecksumReader) BytesRead() int64 { return cr.n }

// FormatChecksum renders a checksum the way logs and the journal show it.
func FormatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
