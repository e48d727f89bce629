// Package tsv reads header-indexed tab separated files, plain or gzipped.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/brentp/xopen"
)

// Reader reads rows of a tab separated file addressed by header name.
type Reader struct {
	reader     *bufio.Reader
	closer     io.Closer
	header     []string
	index      map[string]int
	headerAt   int
	lineNumber int
}

// Open opens a TSV file. Gzipped files are detected by content and "-"
// reads stdin.
func Open(path string) (*Reader, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open tsv file: %w", err)
	}
	r := &Reader{reader: f.Reader, closer: f}
	if err := r.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader creates a reader from an io.Reader.
func NewReader(rd io.Reader) (*Reader, error) {
	r := &Reader{reader: bufio.NewReader(rd)}
	if err := r.parseHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// parseHeader reads the first line that is neither blank nor a comment.
func (r *Reader) parseHeader() error {
	for {
		line, err := r.readLine()
		if err == io.EOF {
			return &ParseError{Line: r.lineNumber, Message: "no header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r.headerAt = r.lineNumber
		r.header = strings.Split(line, "\t")
		r.index = make(map[string]int, len(r.header))
		for i, col := range r.header {
			col = strings.TrimSpace(col)
			r.header[i] = col
			if _, dup := r.index[col]; !dup {
				r.index[col] = i
			}
		}
		return nil
	}
}

// readLine returns the next line without its terminator. A final line
// without a newline is still returned.
func (r *Reader) readLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	r.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// Next returns the next data row. It returns nil, nil at the end of input.
// Blank and comment lines are skipped.
func (r *Reader) Next() (*Row, error) {
	for {
		line, err := r.readLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", r.lineNumber+1, err)
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return &Row{Line: r.lineNumber, fields: strings.Split(line, "\t"), index: r.index}, nil
	}
}

// Header returns the column names.
func (r *Reader) Header() []string {
	return r.header
}

// Has reports whether the header contains col.
func (r *Reader) Has(col string) bool {
	_, ok := r.index[col]
	return ok
}

// Require returns a ParseError naming the first missing column.
func (r *Reader) Require(cols ...string) error {
	for _, c := range cols {
		if !r.Has(c) {
			return &ParseError{Line: r.headerAt, Message: fmt.Sprintf("required column '%s' not found in header", c)}
		}
	}
	return nil
}

// LineNumber returns the number of lines read so far.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Row is one data line.
type Row struct {
	Line   int
	fields []string
	index  map[string]int
}

// Get returns the trimmed value of col, or "" when the column is absent or
// the row is short.
func (row *Row) Get(col string) string {
	i, ok := row.index[col]
	if !ok || i >= len(row.fields) {
		return ""
	}
	return strings.TrimSpace(row.fields[i])
}

// First returns the first non-empty value among cols.
func (row *Row) First(cols ...string) string {
	for _, c := range cols {
		if v := row.Get(c); v != "" {
			return v
		}
	}
	return ""
}

// Len returns the number of fields in the row.
func (row *Row) Len() int {
	return len(row.fields)
}

// Map returns the row keyed by column name. Keys found in rename are
// replaced by their mapped name. Empty values are omitted.
func (row *Row) Map(rename map[string]string) map[string]any {
	out := make(map[string]any, len(row.index))
	for col, i := range row.index {
		if i >= len(row.fields) {
			continue
		}
		v := strings.TrimSpace(row.fields[i])
		if v == "" {
			continue
		}
		if to, ok := rename[col]; ok {
			col = to
		}
		out[col] = v
	}
	return out
}

// ReadAll reads every row of path as a map. See Row.Map.
func ReadAll(path string, rename map[string]string) ([]map[string]any, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []map[string]any
	for {
		row, err := r.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return out, nil
		}
		out = append(out, row.Map(rename))
	}
}

// ParseError is a TSV error with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tsv parse error at line %d: %s", e.Line, e.Message)
}
