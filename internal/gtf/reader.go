package gtf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const numFields = 9

// Options configures how a table is read and written.
type Options struct {
	Delimiter     string // Field delimiter (default tab)
	CommentPrefix string // Lines starting with this prefix are skipped (default "#")
}

// DefaultOptions returns tab-delimited options with "#" comments.
func DefaultOptions() Options {
	return Options{Delimiter: "\t", CommentPrefix: "#"}
}

func (o Options) withDefaults() Options {
	if o.Delimiter == "" {
		o.Delimiter = "\t"
	}
	if o.CommentPrefix == "" {
		o.CommentPrefix = "#"
	}
	return o
}

// Read parses a GTF table from r. Any malformed row aborts the read with an
// error wrapping ErrMalformedInput.
func Read(r io.Reader, opts Options) (Table, error) {
	opts = opts.withDefaults()

	scanner := bufio.NewScanner(r)
	// Increase buffer size for long attribute columns
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var table Table
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, opts.CommentPrefix) {
			continue
		}

		rec, err := parseLine(line, opts.Delimiter)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		table = append(table, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	return table, nil
}

// Load reads a GTF table from a file. The path must end in .gtf or .gtf.gz;
// "-" reads from stdin.
func Load(path string, opts Options) (Table, error) {
	if path == "-" {
		return Read(os.Stdin, opts)
	}

	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".gtf") && !strings.HasSuffix(lower, ".gtf.gz") {
		return nil, fmt.Errorf("%w: %s does not appear to be a GTF file", ErrMalformedInput, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(lower, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return Read(reader, opts)
}

// parseLine parses a single GTF line.
func parseLine(line, delim string) (*Record, error) {
	fields := strings.Split(line, delim)
	if len(fields) != numFields {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedInput, numFields, len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: parse start %q", ErrMalformedInput, fields[3])
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: parse end %q", ErrMalformedInput, fields[4])
	}

	if start < 1 || start > end {
		return nil, fmt.Errorf("%w: invalid interval %d-%d", ErrMalformedInput, start, end)
	}

	return &Record{
		Seqname:    fields[0],
		Source:     fields[1],
		Feature:    fields[2],
		Start:      start,
		End:        end,
		Score:      fields[5],
		Strand:     ParseStrand(fields[6]),
		RawStrand:  fields[6],
		Frame:      fields[7],
		Attributes: NewAttributes(fields[8]),
		Raw:        fields[8],
	}, nil
}
