package engine

import (
	"fmt"
	"io"
	"math"
	"time"
)

var sizeUnits = []string{"B", "Ki", "Mi", "Gi", "Ti"}

// HumanSize formats a byte count using binary prefixes with one decimal place,
// e.g. 1536 -> "1.5Ki". Negative values keep their sign.
func HumanSize(n int64) string {
	num := float64(n)
	for _, unit := range sizeUnits {
		if math.Abs(num) < 1024 {
			return fmt.Sprintf("%.1f%s", num, unit)
		}
		num /= 1024
	}
	return fmt.Sprintf("%.1fPi", num)
}

// RunStats accumulates counts across one or more dispatch rounds.
type RunStats struct {
	Files   int
	Bytes   int64
	Elapsed time.Duration
}

// Add folds a round into the running totals.
func (s *RunStats) Add(round RunStats) {
	s.Files += round.Files
	s.Bytes += round.Bytes
	s.Elapsed += round.Elapsed
}

// Throughput returns MB/s, or zero when nothing was timed or moved.
func (s RunStats) Throughput() float64 {
	if s.Elapsed <= 0 || s.Bytes == 0 {
		return 0
	}
	return float64(s.Bytes) / s.Elapsed.Seconds() / (1024 * 1024)
}

// Print writes the end-of-run summary. Size and rate are only reported when
// both a size and an elapsed time are known.
func (s RunStats) Print(w io.Writer) {
	fmt.Fprintf(w, "Total files: %d\n", s.Files)
	if s.Elapsed <= 0 || s.Bytes == 0 {
		return
	}
	fmt.Fprintf(w, "Total size: %s\n", HumanSize(s.Bytes))
	fmt.Fprintf(w, "Data transfer rate: %.2f MB/sec\n", s.Throughput())
}
