package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/gtftrim/internal/duckdb"
	"github.com/inodb/gtftrim/internal/filter"
	"github.com/inodb/gtftrim/internal/gtf"
	"github.com/inodb/gtftrim/internal/truncate"
)

// Trim modes
const (
	modeCascade = "cascade"
	modeFixed   = "fixed"
)

// truncateOptions holds the resolved settings of one truncate run.
type truncateOptions struct {
	input        string
	output       string
	codingOutput string
	biotype      string
	longest      bool
	mode         string
	fivePrime    int64
	threePrime   int64
	workers      int
	chunks       int
	dbPath       string
	cacheDir     string
	delimiter    string
}

func newTruncateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truncate [input.gtf]",
		Short: "Trim nucleotides from the ends of every transcript",
		Long: `Filter a GTF annotation by biotype and trim a fixed number of nucleotides from
the 5' and/or 3' end of every transcript.

In cascade mode (default) a trim longer than the terminal exon continues into
the next exon, and exons consumed entirely are removed. Transcripts that cannot
absorb the trim are excluded from the output and listed in the summary.

In fixed mode only the first exon (exon_number 1) is trimmed at its 5' end, and
it is removed if it is shorter than the trim.

Without an input file, the GENCODE annotation downloaded for --assembly is used.`,
		Example: `  gtftrim truncate --five-prime 45 gencode.gtf > trimmed.gtf
  gtftrim truncate --five-prime 45 --three-prime 30 -o trimmed.gtf gencode.gtf.gz
  gtftrim truncate --five-prime 45 --longest --coding-output coding.gtf gencode.gtf
  gtftrim truncate --mode fixed --five-prime 45 --chunks 8 gencode.gtf
  gtftrim truncate --five-prime 45 --db runs.duckdb gencode.gtf`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			opts := truncateOptionsFromConfig()

			if len(args) == 1 {
				opts.input = args[0]
			} else {
				assembly := viper.GetString("assembly")
				path, found := FindGENCODEGTF(assembly)
				if !found {
					return &usageError{fmt.Errorf("no input file given and no GENCODE annotation found for %s (download one with: gtftrim download --assembly %s)", assembly, assembly)}
				}
				opts.input = path
				logger.Info("using downloaded GENCODE annotation", zap.String("path", path))
			}

			return runTruncate(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.Int64("five-prime", 0, "Nucleotides to trim from the 5' end of each transcript")
	f.Int64("three-prime", 0, "Nucleotides to trim from the 3' end of each transcript (cascade mode only)")
	f.String("biotype", filter.DefaultBiotype, "Keep only rows whose attributes contain this biotype label")
	f.Bool("longest", false, "Keep only the longest coding transcript of each gene")
	f.String("coding-output", "", "Also write the filtered table before trimming to this file")
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.String("mode", modeCascade, "Trim mode: cascade or fixed")
	f.Int("workers", 0, "Number of worker goroutines (default: number of CPUs)")
	f.Int("chunks", 0, "Fixed mode: number of row chunks (default: number of workers)")
	f.String("db", "", "Record the run in this DuckDB database")
	f.String("cache-dir", "", "Cache the filtered table in this directory")
	f.String("delimiter", "\t", "Field delimiter for input and output")
	f.String("assembly", "GRCh38", "Assembly of the downloaded annotation used when no input is given")

	return cmd
}

// truncateOptionsFromConfig resolves flag, environment and config file values.
func truncateOptionsFromConfig() truncateOptions {
	return truncateOptions{
		output:       viper.GetString("output"),
		codingOutput: viper.GetString("coding-output"),
		biotype:      viper.GetString("biotype"),
		longest:      viper.GetBool("longest"),
		mode:         viper.GetString("mode"),
		fivePrime:    viper.GetInt64("five-prime"),
		threePrime:   viper.GetInt64("three-prime"),
		workers:      viper.GetInt("workers"),
		chunks:       viper.GetInt("chunks"),
		dbPath:       viper.GetString("db"),
		cacheDir:     viper.GetString("cache-dir"),
		delimiter:    viper.GetString("delimiter"),
	}
}

func runTruncate(opts truncateOptions, stdout, stderr io.Writer) error {
	req := truncate.Request{FivePrime: opts.fivePrime, ThreePrime: opts.threePrime}
	if err := req.Validate(); err != nil {
		return &usageError{err}
	}
	if opts.mode != modeCascade && opts.mode != modeFixed {
		return &usageError{fmt.Errorf("unknown mode %q (use cascade or fixed)", opts.mode)}
	}
	if opts.mode == modeFixed && req.ThreePrime > 0 {
		return &usageError{truncate.ErrFixedThreePrime}
	}

	gtfOpts := gtf.Options{Delimiter: opts.delimiter}

	table, failures, err := loadFiltered(opts, gtfOpts)
	if err != nil {
		return err
	}

	if opts.codingOutput != "" {
		if err := gtf.Save(opts.codingOutput, table, gtfOpts); err != nil {
			return fmt.Errorf("writing coding output: %w", err)
		}
		logger.Info("wrote filtered table", zap.String("path", opts.codingOutput), zap.Int("rows", len(table)))
	}

	outcome, err := trim(opts, req, table)
	if err != nil {
		return err
	}
	failures = append(failures, outcome.Report.Failures...)

	if err := writeOutput(opts.output, outcome.Table, gtfOpts, stdout); err != nil {
		return err
	}

	if opts.dbPath != "" {
		if err := recordRun(opts, outcome, failures); err != nil {
			return err
		}
	}

	printSummary(stderr, opts.mode, outcome.Report, failures)
	return nil
}

// loadFiltered loads the input and applies the biotype filter and optional
// longest-transcript selection, reusing the table cache when it is current.
func loadFiltered(opts truncateOptions, gtfOpts gtf.Options) (gtf.Table, []*gtf.TranscriptError, error) {
	var (
		tc  *duckdb.TableCache
		key duckdb.CacheKey
	)

	if opts.cacheDir != "" && opts.input != "-" {
		fp, err := duckdb.StatFile(opts.input)
		if err != nil {
			return nil, nil, fmt.Errorf("stat input: %w", err)
		}
		key = duckdb.CacheKey{
			Source:    fp,
			Biotype:   opts.biotype,
			Longest:   opts.longest,
			Delimiter: gtfOpts.Delimiter,
		}
		tc = duckdb.NewTableCache(opts.cacheDir)
		if tc.Valid(key) {
			table, failures, err := tc.Load()
			if err == nil {
				logger.Info("loaded filtered table from cache",
					zap.String("dir", opts.cacheDir),
					zap.Int("rows", len(table)),
					zap.Int("failures", len(failures)))
				return table, failures, nil
			}
			logger.Warn("could not load table cache, rebuilding", zap.Error(err))
		}
	}

	table, err := gtf.Load(opts.input, gtfOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("loading annotation: %w", err)
	}
	total := len(table)

	table = filter.Biotype(table, opts.biotype)
	logger.Info("filtered by biotype",
		zap.String("biotype", opts.biotype),
		zap.Int("rows", total),
		zap.Int("kept", len(table)))

	var failures []*gtf.TranscriptError
	if opts.longest {
		table, failures = filter.Longest(table)
		for _, f := range failures {
			logger.Warn("gene dropped", zap.String("gene_id", f.GeneID), zap.Error(f.Err))
		}
		logger.Debug("selected longest transcripts", zap.Int("rows", len(table)))
	}

	if tc != nil {
		if err := tc.Write(key, table, failures); err != nil {
			logger.Warn("could not write table cache", zap.Error(err))
		}
	}

	return table, failures, nil
}

func trim(opts truncateOptions, req truncate.Request, table gtf.Table) (*truncate.Outcome, error) {
	if opts.mode == modeFixed {
		ft := truncate.NewFixedTrimmer(req)
		ft.SetWorkers(opts.workers)
		ft.SetChunks(opts.chunks)
		ft.SetLogger(logger)
		return ft.Run(table)
	}

	tr := truncate.NewTruncator(req)
	tr.SetWorkers(opts.workers)
	tr.SetLogger(logger)
	outcome, err := tr.Run(table)
	if errors.Is(err, truncate.ErrNotContiguous) {
		return nil, fmt.Errorf("%w (transcript rows must be grouped together, as in GENCODE and Ensembl releases)", err)
	}
	return outcome, err
}

func writeOutput(path string, table gtf.Table, gtfOpts gtf.Options, stdout io.Writer) error {
	if path == "" || path == "-" {
		return writeTable(stdout, table, gtfOpts)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeTable(f, table, gtfOpts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

func writeTable(out io.Writer, table gtf.Table, gtfOpts gtf.Options) error {
	w := gtf.NewWriter(out, gtfOpts)
	if err := w.WriteTable(table); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// recordRun stores the run, its output and its failures in DuckDB.
func recordRun(opts truncateOptions, outcome *truncate.Outcome, failures []*gtf.TranscriptError) error {
	dbPath := opts.dbPath
	if filepath.Ext(dbPath) != ".duckdb" && filepath.Ext(dbPath) != ".db" {
		dbPath = dbPath + ".duckdb"
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening run database: %w", err)
	}
	defer store.Close()

	input := duckdb.FileFingerprint{Path: opts.input}
	if opts.input != "-" {
		if fp, err := duckdb.StatFile(opts.input); err == nil {
			input = fp
		}
	}

	run := &duckdb.Run{
		Input:               input,
		Mode:                opts.mode,
		FivePrime:           opts.fivePrime,
		ThreePrime:          opts.threePrime,
		Biotype:             opts.biotype,
		Longest:             opts.longest,
		RemovedExons:        int64(outcome.Report.RemovedExons),
		ExcludedTranscripts: int64(len(failures)),
	}

	id, err := store.WriteRun(run, outcome.Table, failures)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	logger.Info("recorded run", zap.String("db", dbPath), zap.Int64("run_id", id))
	return nil
}

// printSummary writes the run diagnostics to w. Excluded transcripts and
// genes dropped for lacking a transcript record are listed separately.
func printSummary(w io.Writer, mode string, report truncate.Report, failures []*gtf.TranscriptError) {
	if mode == modeFixed {
		fmt.Fprintf(w, "Trimmed first exons: %d edited, %d removed, %d unstranded left unchanged\n",
			report.EditedExons, report.RemovedExons, report.UnstrandedRows)
	} else {
		fmt.Fprintf(w, "Trimmed %d transcripts: %d exons edited, %d exons removed\n",
			report.Transcripts-report.ExcludedTranscripts, report.EditedExons, report.RemovedExons)
	}

	var transcripts, genes []*gtf.TranscriptError
	for _, f := range failures {
		if f.TranscriptID == "" {
			genes = append(genes, f)
		} else {
			transcripts = append(transcripts, f)
		}
	}

	if len(transcripts) > 0 {
		fmt.Fprintf(w, "%d transcripts excluded:\n", len(transcripts))
		for _, f := range transcripts {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	if len(genes) > 0 {
		fmt.Fprintf(w, "%d genes dropped:\n", len(genes))
		for _, f := range genes {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
