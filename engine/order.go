package engine

import (
	"bufio"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/franksops/s3xfer/errs"
)

// OrderLine is one record of an order file. Destination is empty for
// one-column files.
type OrderLine struct {
	Source      string
	Destination string
}

// ParseOrderFile reads newline-delimited, tab-separated records and checks
// that every non-blank line has exactly the given number of columns.
func ParseOrderFile(r io.Reader, columns int) ([]OrderLine, error) {
	var lines []OrderLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if text == "" {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) != columns {
			return nil, errs.Configf("Order file requires %d column(s), but line %d has %d",
				columns, lineNo, len(fields))
		}

		line := OrderLine{Source: fields[0]}
		if columns > 1 {
			line.Destination = fields[1]
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.IOError{Op: "read order file", Path: "", Err: err}
	}
	return lines, nil
}

// ReadOrderFile opens path and parses it with ParseOrderFile.
func ReadOrderFile(path string, columns int) ([]OrderLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open order file", Path: path, Err: err}
	}
	defer f.Close()

	lines, err := ParseOrderFile(f, columns)
	if ioErr, ok := err.(*errs.IOError); ok {
		ioErr.Path = path
	}
	return lines, err
}
