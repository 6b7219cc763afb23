package duckdb

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/gtftrim/internal/gtf"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return FileFingerprint{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// CacheKey identifies the filtered table a cache entry holds: the source
// file plus every setting that changes how it is parsed or filtered.
type CacheKey struct {
	Source    FileFingerprint
	Biotype   string
	Longest   bool
	Delimiter string
}

func (k CacheKey) entries() []struct{ key, val string } {
	return []struct{ key, val string }{
		{"source_path", k.Source.Path},
		{"source_size", strconv.FormatInt(k.Source.Size, 10)},
		{"source_modtime", k.Source.ModTime.UTC().Format(time.RFC3339Nano)},
		{"biotype", k.Biotype},
		{"longest", strconv.FormatBool(k.Longest)},
		{"delimiter", strconv.Quote(k.Delimiter)},
	}
}

// TableCache manages a gob-serialized filtered table on disk, so repeated
// runs over the same annotation skip parsing and filtering:
//
//	{dir}/filtered.gob       (serialized table and selection failures)
//	{dir}/filtered.gob.meta  (cache key)
type TableCache struct {
	dir string
}

// cachedTable is the gob payload. Failures are stored by kind since error
// values do not survive gob encoding.
type cachedTable struct {
	Table    gtf.Table
	Failures []cachedFailure
}

type cachedFailure struct {
	GeneID       string
	TranscriptID string
	Kind         string
	Message      string
}

// NewTableCache creates a table cache for the given directory.
func NewTableCache(dir string) *TableCache {
	return &TableCache{dir: dir}
}

func (tc *TableCache) gobPath() string {
	return filepath.Join(tc.dir, "filtered.gob")
}

func (tc *TableCache) metaPath() string {
	return filepath.Join(tc.dir, "filtered.gob.meta")
}

// Valid checks whether the cached table was built for the same key.
func (tc *TableCache) Valid(key CacheKey) bool {
	meta, err := tc.readMeta()
	if err != nil {
		return false
	}

	for _, c := range key.entries() {
		if meta[c.key] != c.val {
			return false
		}
	}

	// Verify gob file exists
	if _, err := os.Stat(tc.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the cached table and the failures recorded while building it.
func (tc *TableCache) Load() (gtf.Table, []*gtf.TranscriptError, error) {
	f, err := os.Open(tc.gobPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open table cache: %w", err)
	}
	defer f.Close()

	var payload cachedTable
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode table cache: %w", err)
	}

	var failures []*gtf.TranscriptError
	for _, cf := range payload.Failures {
		err := gtf.KindError(cf.Kind)
		if err == nil {
			err = errors.New(cf.Message)
		}
		failures = append(failures, &gtf.TranscriptError{
			GeneID:       cf.GeneID,
			TranscriptID: cf.TranscriptID,
			Err:          err,
		})
	}
	return payload.Table, failures, nil
}

// Write serializes a filtered table and its failures to disk under key.
func (tc *TableCache) Write(key CacheKey, table gtf.Table, failures []*gtf.TranscriptError) error {
	if err := os.MkdirAll(tc.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	payload := cachedTable{Table: table}
	for _, fe := range failures {
		payload.Failures = append(payload.Failures, cachedFailure{
			GeneID:       fe.GeneID,
			TranscriptID: fe.TranscriptID,
			Kind:         fe.Kind(),
			Message:      fe.Err.Error(),
		})
	}

	f, err := os.Create(tc.gobPath())
	if err != nil {
		return fmt.Errorf("create table cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		os.Remove(tc.gobPath())
		return fmt.Errorf("encode table cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close table cache: %w", err)
	}

	return tc.writeMeta(key)
}

// Clear removes the cached table files.
func (tc *TableCache) Clear() {
	os.Remove(tc.gobPath())
	os.Remove(tc.metaPath())
}

func (tc *TableCache) writeMeta(key CacheKey) error {
	var lines []string
	for _, c := range key.entries() {
		lines = append(lines, c.key+"="+c.val)
	}
	lines = append(lines, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(tc.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (tc *TableCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(tc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
