package gtf

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is returned when the input is not a 9-column GTF table.
// It is fatal for the whole load.
var ErrMalformedInput = errors.New("malformed GTF input")

// Per-transcript error kinds. These are collected into a report and never
// abort a run.
var (
	ErrNoTranscript          = errors.New("gene has no transcript records")
	ErrNoExon                = errors.New("transcript has no exon records")
	ErrTrimExceedsTranscript = errors.New("trim exceeds transcript length")
	ErrStrandAmbiguity       = errors.New("missing or invalid strand")
	ErrMissingTranscript     = errors.New("rows reference a transcript with no transcript record")
)

// TranscriptError records a failure confined to one gene or transcript block.
type TranscriptError struct {
	GeneID       string
	TranscriptID string
	Err          error
}

func (e *TranscriptError) Error() string {
	if e.TranscriptID == "" {
		return fmt.Sprintf("gene %s: %v", e.GeneID, e.Err)
	}
	return fmt.Sprintf("transcript %s: %v", e.TranscriptID, e.Err)
}

func (e *TranscriptError) Unwrap() error {
	return e.Err
}

// Kind returns a short name for the error kind, used in reports.
func (e *TranscriptError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrNoTranscript):
		return "no_transcript"
	case errors.Is(e.Err, ErrNoExon):
		return "no_exon"
	case errors.Is(e.Err, ErrTrimExceedsTranscript):
		return "trim_exceeds_transcript"
	case errors.Is(e.Err, ErrStrandAmbiguity):
		return "strand_ambiguity"
	case errors.Is(e.Err, ErrMissingTranscript):
		return "missing_transcript"
	}
	return "other"
}

// KindError returns the sentinel error named by a Kind value, or nil for an
// unknown kind.
func KindError(kind string) error {
	switch kind {
	case "no_transcript":
		return ErrNoTranscript
	case "no_exon":
		return ErrNoExon
	case "trim_exceeds_transcript":
		return ErrTrimExceedsTranscript
	case "strand_ambiguity":
		return ErrStrandAmbiguity
	case "missing_transcript":
		return ErrMissingTranscript
	}
	return nil
}
