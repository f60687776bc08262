// Package csvio reads and writes the pipeline's CSV files. Files are
// UTF-8 with a byte-order mark, matching the upstream registry exports.
package csvio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Table is a header-indexed CSV file held in memory. Cell access is by
// column name; a missing column is an error at lookup time, not a panic.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// ReadFile loads a CSV file into a Table, stripping a leading BOM if
// present.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if peek, err := br.Peek(3); err == nil && string(peek) == string(bom) {
		br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	t := &Table{
		Header: records[0],
		Rows:   records[1:],
		index:  make(map[string]int, len(records[0])),
	}
	for i, name := range t.Header {
		t.index[strings.TrimSpace(name)] = i
	}
	return t, nil
}

// Col returns the index of a named column, or -1 if absent.
func (t *Table) Col(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Cell returns the trimmed value of a named column in a row, or "" when the
// column is absent or the row is short.
func (t *Table) Cell(row []string, name string) string {
	i := t.Col(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Float parses a cell as float64, returning NaN for blank cells. The
// registry uses blanks, never zeroes, for unreported values.
func (t *Table) Float(row []string, name string) float64 {
	s := t.Cell(row, name)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Int parses a cell as an integer, tolerating a float rendering like
// "2015.0". ok is false for blank or unparsable cells.
func (t *Table) Int(row []string, name string) (int, bool) {
	s := t.Cell(row, name)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// Writer writes a BOM-prefixed CSV file with a fixed header.
type Writer struct {
	f *os.File
	w *csv.Writer
	n int
}

func NewWriter(path string, header []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(bom); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing BOM to %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header to %s: %w", path, err)
	}
	return &Writer{f: f, w: w, n: len(header)}, nil
}

func (w *Writer) Write(row []string) error {
	if len(row) != w.n {
		return fmt.Errorf("row has %d fields, header has %d", len(row), w.n)
	}
	return w.w.Write(row)
}

func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// FormatFloat renders a float the way the pipeline's CSVs expect: empty
// string for NaN, shortest round-trip form otherwise.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
