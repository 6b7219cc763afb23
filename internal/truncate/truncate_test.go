package truncate

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/biogo/biogo/feat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/gtftrim/internal/gtf"
)

// transcript builds the rows of one transcript. Exons are given 5' to 3' and
// written in that order, as GENCODE does.
func transcript(id string, strand feat.Orientation, exons ...[2]int64) gtf.Table {
	lo, hi := exons[0][0], exons[0][1]
	for _, e := range exons {
		lo, hi = min(lo, e[0]), max(hi, e[1])
	}

	gene := "G" + id
	rows := gtf.Table{{
		Seqname:    "chr1",
		Feature:    gtf.FeatureTranscript,
		Start:      lo,
		End:        hi,
		Strand:     strand,
		Attributes: gtf.Attributes{GeneID: gene, TranscriptID: id},
		Raw:        fmt.Sprintf(`gene_id "%s"; transcript_id "%s";`, gene, id),
	}}
	for i, e := range exons {
		num := fmt.Sprint(i + 1)
		rows = append(rows, &gtf.Record{
			Seqname:    "chr1",
			Feature:    gtf.FeatureExon,
			Start:      e[0],
			End:        e[1],
			Strand:     strand,
			Attributes: gtf.Attributes{GeneID: gene, TranscriptID: id, ExonNumber: num},
			Raw:        fmt.Sprintf(`gene_id "%s"; transcript_id "%s"; exon_number "%s";`, gene, id, num),
		})
	}
	return rows
}

func concat(tables ...gtf.Table) gtf.Table {
	var out gtf.Table
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}

func exonsOf(t gtf.Table, id string) [][2]int64 {
	var out [][2]int64
	for _, r := range t {
		if r.IsExon() && r.Attributes.TranscriptID == id {
			out = append(out, [2]int64{r.Start, r.End})
		}
	}
	return out
}

func run(t *testing.T, table gtf.Table, req Request) *Outcome {
	t.Helper()
	tr := NewTruncator(req)
	tr.SetWorkers(4)
	out, err := tr.Run(table)
	require.NoError(t, err)
	return out
}

func TestCascade_ForwardFivePrime(t *testing.T) {
	table := transcript("T1", feat.Forward, [2]int64{1, 10}, [2]int64{21, 30}, [2]int64{41, 50})

	out := run(t, table, Request{FivePrime: 25})

	assert.Equal(t, [][2]int64{{46, 50}}, exonsOf(out.Table, "T1"))
	assert.Equal(t, 2, out.Report.RemovedExons)
	assert.Equal(t, 1, out.Report.EditedExons)
	assert.Empty(t, out.Report.Failures)
}

func TestCascade_StrandSymmetry(t *testing.T) {
	lengths := []int64{10, 7, 12, 30}
	for k := int64(1); k < 59; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			var plus, minus [][2]int64
			pos := int64(1)
			for _, l := range lengths {
				plus = append(plus, [2]int64{pos, pos + l - 1})
				pos += l + 100
			}
			// Mirror: the 5' exon has the highest coordinate
			for _, e := range plus {
				minus = append(minus, [2]int64{10000 - e[1], 10000 - e[0]})
			}

			fwd, err := Scan(&Block{Rows: transcript("P", feat.Forward, plus...)})
			require.NoError(t, err)
			rev, err := Scan(&Block{Rows: transcript("M", feat.Reverse, minus...)})
			require.NoError(t, err)

			nf, errF := fwd.Cascade(FivePrime, k)
			nr, errR := rev.Cascade(FivePrime, k)
			require.NoError(t, errF)
			require.NoError(t, errR)
			assert.Equal(t, nf, nr)

			for i := 0; i < fwd.Len(); i++ {
				assert.Equal(t, fwd.Exon(i).Exhausted, rev.Exon(i).Exhausted)
				assert.Equal(t, fwd.Exon(i).Len(), rev.Exon(i).Len())
			}
		})
	}
}

func TestCascade_ReverseFivePrime(t *testing.T) {
	// Exon 1 of a reverse-strand transcript has the highest coordinates
	table := transcript("T1", feat.Reverse, [2]int64{41, 50}, [2]int64{21, 30}, [2]int64{1, 10})

	out := run(t, table, Request{FivePrime: 25})

	assert.Equal(t, [][2]int64{{1, 5}}, exonsOf(out.Table, "T1"))
	assert.Equal(t, 2, out.Report.RemovedExons)
}

func TestCascade_ThreePrime(t *testing.T) {
	tests := []struct {
		name   string
		strand feat.Orientation
		exons  [][2]int64
		want   [][2]int64
	}{
		{
			name:   "forward lowers the end of the last exon",
			strand: feat.Forward,
			exons:  [][2]int64{{1, 10}, {21, 30}},
			want:   [][2]int64{{1, 10}, {21, 26}},
		},
		{
			name:   "reverse raises the start of the last exon",
			strand: feat.Reverse,
			exons:  [][2]int64{{21, 30}, {1, 10}},
			want:   [][2]int64{{21, 30}, {5, 10}},
		},
		{
			name:   "cascades toward the 5' end",
			strand: feat.Forward,
			exons:  [][2]int64{{1, 10}, {21, 30}, {41, 43}},
			want:   [][2]int64{{1, 10}, {21, 29}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, transcript("T1", tt.strand, tt.exons...), Request{ThreePrime: 4})
			assert.Equal(t, tt.want, exonsOf(out.Table, "T1"))
		})
	}
}

func TestCascade_BothEnds(t *testing.T) {
	table := transcript("T1", feat.Forward, [2]int64{1, 100})

	out := run(t, table, Request{FivePrime: 10, ThreePrime: 10})

	assert.Equal(t, [][2]int64{{11, 90}}, exonsOf(out.Table, "T1"))
}

func TestCascade_ExactExonLength(t *testing.T) {
	table := transcript("T1", feat.Forward, [2]int64{1, 10}, [2]int64{21, 30})

	out := run(t, table, Request{FivePrime: 10})

	// The first exon is consumed exactly; the second is untouched
	assert.Equal(t, [][2]int64{{21, 30}}, exonsOf(out.Table, "T1"))
	assert.Equal(t, 1, out.Report.RemovedExons)
	assert.Equal(t, 0, out.Report.EditedExons)
}

func TestCascade_FivePrimeSixtyOnTwoFiftyExons(t *testing.T) {
	table := transcript("T1", feat.Forward, [2]int64{1, 50}, [2]int64{101, 150})

	out := run(t, table, Request{FivePrime: 60})

	assert.Equal(t, [][2]int64{{111, 150}}, exonsOf(out.Table, "T1"))
	assert.Empty(t, out.Report.Failures)
}

func TestCascade_ExceedsTranscript(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"both ends overlap", Request{FivePrime: 60, ThreePrime: 60}},
		{"one end too long", Request{FivePrime: 150}},
		{"consumes every nucleotide", Request{FivePrime: 100}},
		{"ends meet", Request{FivePrime: 50, ThreePrime: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb, err := Scan(&Block{Rows: transcript("T1", feat.Forward, [2]int64{1, 50}, [2]int64{101, 150})})
			require.NoError(t, err)

			_, err = tb.Cascade(FivePrime, tt.req.FivePrime)
			if err == nil {
				_, err = tb.Cascade(ThreePrime, tt.req.ThreePrime)
			}
			assert.ErrorIs(t, err, gtf.ErrTrimExceedsTranscript)
		})
	}
}

func TestRun_EndToEndPartialFailure(t *testing.T) {
	short := transcript("SHORT", feat.Forward, [2]int64{1, 50}, [2]int64{101, 150})
	long := transcript("LONG", feat.Forward, [2]int64{1001, 1200}, [2]int64{1301, 1500})
	rev := transcript("REV", feat.Reverse, [2]int64{3301, 3500}, [2]int64{3001, 3200})
	gene := &gtf.Record{Seqname: "chr1", Feature: gtf.FeatureGene, Start: 1, End: 150, Strand: feat.Forward,
		Attributes: gtf.Attributes{GeneID: "GSHORT"}}

	table := concat(gtf.Table{gene}, short, long, rev)

	out := run(t, table, Request{FivePrime: 60, ThreePrime: 60})

	require.Len(t, out.Report.Failures, 1)
	failure := out.Report.Failures[0]
	assert.Equal(t, "SHORT", failure.TranscriptID)
	assert.ErrorIs(t, failure, gtf.ErrTrimExceedsTranscript)
	assert.Equal(t, []string{"SHORT"}, out.Report.FailedIDs())
	assert.Equal(t, 1, out.Report.ExcludedTranscripts)
	assert.Equal(t, 3, out.Report.ExcludedRows)

	assert.Empty(t, exonsOf(out.Table, "SHORT"))
	assert.Equal(t, [][2]int64{{1061, 1200}, {1301, 1440}}, exonsOf(out.Table, "LONG"))
	assert.Equal(t, [][2]int64{{3301, 3440}, {3061, 3200}}, exonsOf(out.Table, "REV"))

	// Gene row passes through; every row of SHORT is gone
	assert.Same(t, gene, out.Table[0])
	for _, r := range out.Table {
		assert.NotEqual(t, "SHORT", r.Attributes.TranscriptID)
	}
}

func TestRun_StructuralFailures(t *testing.T) {
	noExon := transcript("NOEXON", feat.Forward, [2]int64{1, 50})[:1]
	unstranded := transcript("DOT", feat.NotOriented, [2]int64{1, 50})
	mixed := transcript("MIXED", feat.Forward, [2]int64{1, 50}, [2]int64{101, 150})
	mixed[2].Strand = feat.Reverse
	ok := transcript("OK", feat.Forward, [2]int64{1, 50})

	out := run(t, concat(noExon, unstranded, mixed, ok), Request{FivePrime: 5})

	require.Len(t, out.Report.Failures, 3)
	assert.ErrorIs(t, out.Report.Failures[0], gtf.ErrNoExon)
	assert.ErrorIs(t, out.Report.Failures[1], gtf.ErrStrandAmbiguity)
	assert.ErrorIs(t, out.Report.Failures[2], gtf.ErrStrandAmbiguity)
	assert.Equal(t, "strand_ambiguity", out.Report.Failures[1].Kind())

	assert.Len(t, out.Table, 2)
	assert.Equal(t, [][2]int64{{6, 50}}, exonsOf(out.Table, "OK"))
}

func TestRun_MissingTranscriptRecord(t *testing.T) {
	gene := &gtf.Record{Feature: gtf.FeatureGene, Start: 1, End: 500, Attributes: gtf.Attributes{GeneID: "GNOTX"}}
	headless := transcript("NOTX", feat.Forward, [2]int64{1, 50}, [2]int64{101, 150})[1:]
	ok := transcript("OK", feat.Forward, [2]int64{201, 250})

	out := run(t, concat(gtf.Table{gene}, headless, ok), Request{FivePrime: 5})

	require.Len(t, out.Report.Failures, 1)
	f := out.Report.Failures[0]
	assert.ErrorIs(t, f, gtf.ErrMissingTranscript)
	assert.Equal(t, "NOTX", f.TranscriptID)
	assert.Equal(t, "missing_transcript", f.Kind())
	assert.Equal(t, 1, out.Report.ExcludedTranscripts)
	assert.Equal(t, 2, out.Report.ExcludedRows)
	assert.Equal(t, 2, out.Report.Transcripts)

	assert.Empty(t, exonsOf(out.Table, "NOTX"))
	assert.Equal(t, [][2]int64{{206, 250}}, exonsOf(out.Table, "OK"))
	assert.Same(t, gene, out.Table[0])
	assert.Len(t, out.Table, 3)
}

func TestRun_NotContiguous(t *testing.T) {
	a := transcript("A", feat.Forward, [2]int64{1, 50}, [2]int64{101, 150})
	b := transcript("B", feat.Forward, [2]int64{201, 250})
	table := concat(a[:2], b, a[2:])

	_, err := NewTruncator(Request{FivePrime: 5}).Run(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotContiguous)
	assert.ErrorIs(t, err, gtf.ErrMalformedInput)
}

func TestRun_InvalidRequest(t *testing.T) {
	_, err := NewTruncator(Request{FivePrime: -1}).Run(nil)
	assert.Error(t, err)
}

func TestRun_Invariants(t *testing.T) {
	table, err := gtf.Load("../../testdata/sample.gtf", gtf.DefaultOptions())
	require.NoError(t, err)

	inputKeys := make(map[string]bool)
	for _, r := range table {
		inputKeys[r.Feature+"|"+r.Raw] = true
	}

	for _, req := range []Request{{}, {FivePrime: 15}, {ThreePrime: 12}, {FivePrime: 45, ThreePrime: 45}, {FivePrime: 1000}} {
		out := run(t, table, req)
		for _, r := range out.Table {
			assert.LessOrEqual(t, r.Start, r.End)
			assert.Positive(t, r.Start)
			assert.True(t, inputKeys[r.Feature+"|"+r.Raw], "row not present in input: %s", r.Raw)
		}
		assert.LessOrEqual(t, len(out.Table), len(table))
	}

	// The input table is never modified
	reloaded, err := gtf.Load("../../testdata/sample.gtf", gtf.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, reloaded, table)
}

func TestRun_Sample(t *testing.T) {
	table, err := gtf.Load("../../testdata/sample.gtf", gtf.DefaultOptions())
	require.NoError(t, err)

	out := run(t, table, Request{FivePrime: 15})

	assert.Equal(t, [][2]int64{{205, 209}, {300, 309}}, exonsOf(out.Table, "TA1"))
	assert.Equal(t, [][2]int64{{305, 309}}, exonsOf(out.Table, "TA2"))
	assert.Equal(t, [][2]int64{{1000, 1034}, {900, 949}}, exonsOf(out.Table, "TB1"))
	assert.Equal(t, [][2]int64{{5015, 5100}}, exonsOf(out.Table, "TC1"))
	assert.Equal(t, 2, out.Report.RemovedExons)
	assert.Equal(t, 4, out.Report.Transcripts)
	assert.Len(t, out.Table, len(table)-2)
}

func TestRun_ParallelMatchesSerial(t *testing.T) {
	var table gtf.Table
	for i := 0; i < 200; i++ {
		base := int64(i * 10000)
		strand := feat.Forward
		if i%3 == 0 {
			strand = feat.Reverse
		}
		table = append(table, transcript(fmt.Sprintf("T%d", i), strand,
			[2]int64{base + 1, base + int64(5+i%40)},
			[2]int64{base + 101, base + 130},
			[2]int64{base + 201, base + 201 + int64(i%17)})...)
	}

	req := Request{FivePrime: 20, ThreePrime: 9}

	serial := NewTruncator(req)
	serial.SetWorkers(1)
	want, err := serial.Run(table)
	require.NoError(t, err)

	parallel := NewTruncator(req)
	parallel.SetWorkers(8)
	got, err := parallel.Run(table)
	require.NoError(t, err)

	assert.Equal(t, want.Report, got.Report)
	assert.Equal(t, write(t, want.Table), write(t, got.Table))
}

func write(t *testing.T, table gtf.Table) string {
	t.Helper()
	var buf bytes.Buffer
	w := gtf.NewWriter(&buf, gtf.DefaultOptions())
	require.NoError(t, w.WriteTable(table))
	require.NoError(t, w.Flush())
	return buf.String()
}
