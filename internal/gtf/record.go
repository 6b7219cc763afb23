// Package gtf provides reading and writing of GTF annotation tables.
package gtf

import (
	"github.com/biogo/biogo/feat"
)

// Feature types that carry meaning for truncation.
const (
	FeatureGene       = "gene"
	FeatureTranscript = "transcript"
	FeatureExon       = "exon"
	FeatureCDS        = "CDS"
)

// Record represents one row of a GTF table.
type Record struct {
	Seqname    string           // Sequence (chromosome) name
	Source     string           // Annotation source
	Feature    string           // Feature type (gene, transcript, exon, CDS, ...)
	Start      int64            // Start (1-based, inclusive)
	End        int64            // End (1-based, inclusive)
	Score      string           // Score column, kept verbatim
	Strand     feat.Orientation // Forward, Reverse or NotOriented
	Frame      string           // Frame column, kept verbatim
	Attributes Attributes       // Parsed attribute fields
	Raw        string           // Attribute column, kept verbatim
	RawStrand  string           // Strand column as read
}

// Len returns the number of nucleotides covered by the record.
func (r *Record) Len() int64 {
	return r.End - r.Start + 1
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// IsExon returns true if the record is an exon row.
func (r *Record) IsExon() bool {
	return r.Feature == FeatureExon
}

// StrandSymbol returns the GTF strand symbol for the record.
func (r *Record) StrandSymbol() string {
	if r.Strand == feat.NotOriented && r.RawStrand != "" {
		return r.RawStrand
	}
	return formatStrand(r.Strand)
}

// Table is an ordered sequence of records. File order is authoritative:
// all rows of one transcript are expected to be contiguous.
type Table []*Record

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, r := range t {
		out[i] = r.Clone()
	}
	return out
}

// Count returns the number of rows with the given feature type.
func (t Table) Count(feature string) int {
	n := 0
	for _, r := range t {
		if r.Feature == feature {
			n++
		}
	}
	return n
}

// ParseStrand converts a GTF strand symbol to an orientation.
func ParseStrand(s string) feat.Orientation {
	switch s {
	case "+":
		return feat.Forward
	case "-":
		return feat.Reverse
	}
	return feat.NotOriented
}

func formatStrand(o feat.Orientation) string {
	switch o {
	case feat.Forward:
		return "+"
	case feat.Reverse:
		return "-"
	}
	return "."
}
