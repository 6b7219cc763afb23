package gtf

import (
	"strings"
)

// Attributes holds the attribute fields used by the truncation pipeline.
type Attributes struct {
	GeneID       string
	GeneName     string
	TranscriptID string
	ExonNumber   string
	Biotype      string
}

// parseAttributes parses the GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Find the first space to separate key from value
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}

		key := part[:idx]
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), "\"")

		// Keep the first value for repeated keys (tag, ont, ...)
		if _, ok := attrs[key]; !ok {
			attrs[key] = value
		}
	}

	return attrs
}

// NewAttributes extracts the fields used by the pipeline from a raw attribute
// column.
func NewAttributes(raw string) Attributes {
	m := parseAttributes(raw)
	return Attributes{
		GeneID:       m["gene_id"],
		GeneName:     m["gene_name"],
		TranscriptID: m["transcript_id"],
		ExonNumber:   m["exon_number"],
		Biotype:      firstNonEmpty(m["transcript_type"], m["transcript_biotype"], m["gene_type"], m["gene_biotype"]),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
