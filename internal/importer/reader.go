package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RowError describes a CSV line that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// decode wraps r so it yields UTF-8 for the configured input encoding,
// without a leading byte order mark.
func decode(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(encoding) {
	case "shift_jis", "sjis":
		r = transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// ReadRows streams a delimited file with a header row, calling fn for every
// record. Lines the CSV parser rejects are reported to onBad and skipped.
// An empty input produces no rows and no error.
func ReadRows(r io.Reader, encoding string, fn func(row Row) error, onBad func(*RowError)) error {
	cr := csv.NewReader(decode(r, encoding))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if onBad != nil {
					onBad(&RowError{Line: perr.StartLine, Err: perr.Err})
				}
				continue
			}
			return fmt.Errorf("read record: %w", err)
		}

		row := make(Row, len(header))
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			if _, dup := row[name]; dup {
				continue
			}
			row[name] = strings.TrimSpace(record[i])
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
