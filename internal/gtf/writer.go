package gtf

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// Writer writes records as header-less, unquoted GTF rows.
type Writer struct {
	w     *bufio.Writer
	delim string
}

// NewWriter creates a new GTF writer.
func NewWriter(w io.Writer, opts Options) *Writer {
	opts = opts.withDefaults()
	return &Writer{
		w:     bufio.NewWriter(w),
		delim: opts.Delimiter,
	}
}

// Write writes a single record.
func (gw *Writer) Write(r *Record) error {
	values := []string{
		r.Seqname,
		r.Source,
		r.Feature,
		strconv.FormatInt(r.Start, 10),
		strconv.FormatInt(r.End, 10),
		r.Score,
		r.StrandSymbol(),
		r.Frame,
		r.Raw,
	}

	_, err := gw.w.WriteString(strings.Join(values, gw.delim) + "\n")
	return err
}

// WriteTable writes every record of a table.
func (gw *Writer) WriteTable(t Table) error {
	for _, r := range t {
		if err := gw.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (gw *Writer) Flush() error {
	return gw.w.Flush()
}

// Save writes a table to path, replacing any existing file.
func Save(path string, t Table, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := NewWriter(f, opts)
	if err := w.WriteTable(t); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
