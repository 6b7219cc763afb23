package filter

import (
	"fmt"
	"strings"

	"github.com/inodb/gtftrim/internal/gtf"
)

// Identifiers accepted by FeatureLengths.
const (
	ByTranscriptID = "transcript_id"
	ByGeneID       = "gene_id"
	ByGeneName     = "gene_name"
)

// FeatureLengths sums the lengths of rows of the given feature type (exon or
// CDS) per transcript. Keyed by gene, the value is the longest transcript of
// that gene. The result feeds length-normalized expression units (RPK, TPM).
func FeatureLengths(t gtf.Table, feature, identifier string) (map[string]int64, error) {
	switch strings.ToLower(feature) {
	case "exon":
		feature = gtf.FeatureExon
	case "cds":
		feature = gtf.FeatureCDS
	default:
		return nil, fmt.Errorf("feature type must be exon or CDS, got %q", feature)
	}

	perTranscript := make(map[string]int64)
	geneOf := make(map[string]string)
	for _, r := range t {
		if r.Feature != feature || r.Attributes.TranscriptID == "" {
			continue
		}
		id := r.Attributes.TranscriptID
		perTranscript[id] += r.Len()

		switch identifier {
		case ByGeneID:
			geneOf[id] = r.Attributes.GeneID
		case ByGeneName:
			geneOf[id] = r.Attributes.GeneName
		}
	}

	switch identifier {
	case ByTranscriptID:
		return perTranscript, nil
	case ByGeneID, ByGeneName:
	default:
		return nil, fmt.Errorf("unknown identifier %q", identifier)
	}

	perGene := make(map[string]int64)
	for id, length := range perTranscript {
		gene := geneOf[id]
		if gene == "" {
			continue
		}
		if length > perGene[gene] {
			perGene[gene] = length
		}
	}
	return perGene, nil
}
