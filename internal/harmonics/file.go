package harmonics

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/spur.analyzer/internal/fsutil"
)

// maxFileSize bounds a mixer file. An 11x11 table is a few hundred bytes.
const maxFileSize = 1 * 1024 * 1024

// FileError reports a mixer file that could not be read or parsed. It names
// the file so the warning shown to the user can point at it.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("mixer file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Parse reads a table from comma-separated rows of integers, row-major from
// order 0. Blank lines are skipped and fields may carry surrounding spaces.
// Any non-integer field or ragged row rejects the whole input.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var rows [][]float64
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, pe.Line, pe.Err)
			}
			return nil, fmt.Errorf("read table: %w", err)
		}

		row := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				line, col := cr.FieldPos(i)
				return nil, fmt.Errorf("%w: line %d column %d: %q is not an integer", ErrMalformedTable, line, col, field)
			}
			row[i] = float64(v)
		}
		rows = append(rows, row)
	}
	return New(rows)
}

// LoadFile reads and parses a mixer file through fsys.
func LoadFile(fsys fsutil.FileSystem, path string) (*Table, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	if len(data) > maxFileSize {
		return nil, &FileError{Path: path, Err: fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrMalformedTable, len(data), maxFileSize)}
	}
	t, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return t, nil
}
