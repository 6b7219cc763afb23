package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/gtftrim/internal/duckdb"
	"github.com/inodb/gtftrim/internal/gtf"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect truncation runs recorded with --db",
		Long:  "List, inspect, or clear the truncation runs stored in a DuckDB database.",
		Example: `  gtftrim runs --db runs.duckdb                          # list runs
  gtftrim runs show 3 --db runs.duckdb                   # excluded transcripts of run 3
  gtftrim runs show 3 --transcript ENST00000269305.9 --db runs.duckdb
  gtftrim runs clear --db runs.duckdb`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				return listRuns(s, cmd.OutOrStdout())
			})
		},
	}

	cmd.PersistentFlags().String("db", "", "DuckDB database written by truncate --db")

	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsClearCmd())

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's excluded transcripts or the stored rows of one transcript",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return &usageError{fmt.Errorf("invalid run id %q", args[0])}
			}
			return withStore(cmd, func(s *duckdb.Store) error {
				if tid := viper.GetString("transcript"); tid != "" {
					return showTranscript(s, id, tid, cmd.OutOrStdout())
				}
				return showRun(s, id, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().String("transcript", "", "Print the stored output rows of this transcript")
	return cmd
}

func newRunsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded runs",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *duckdb.Store) error {
				if err := s.ClearRuns(); err != nil {
					return fmt.Errorf("clearing runs: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All runs removed")
				return nil
			})
		},
	}
}

// withStore opens the database named by --db and passes it to fn.
func withStore(cmd *cobra.Command, fn func(*duckdb.Store) error) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	path := viper.GetString("db")
	if path == "" {
		return &usageError{fmt.Errorf("--db is required")}
	}

	s, err := duckdb.Open(path)
	if err != nil {
		return fmt.Errorf("opening run database: %w", err)
	}
	defer s.Close()
	return fn(s)
}

func listRuns(s *duckdb.Store, out io.Writer) error {
	runs, err := s.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMODE\t5'\t3'\tBIOTYPE\tLONGEST\tROWS\tREMOVED\tEXCLUDED\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%t\t%d\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Mode,
			r.FivePrime, r.ThreePrime, r.Biotype, r.Longest,
			r.OutputRows, r.RemovedExons, r.ExcludedTranscripts, r.Input.Path)
	}
	return tw.Flush()
}

func showRun(s *duckdb.Store, id int64, out io.Writer) error {
	n, err := s.RecordCount(id)
	if err != nil {
		return err
	}
	skipped, err := s.SkippedTranscripts(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %d: %d output rows, %d excluded\n", id, n, len(skipped))
	if len(skipped) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GENE\tTRANSCRIPT\tKIND\tMESSAGE")
	for _, st := range skipped {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.GeneID, st.TranscriptID, st.Kind, st.Message)
	}
	return tw.Flush()
}

func showTranscript(s *duckdb.Store, id int64, transcriptID string, out io.Writer) error {
	rows, err := s.LookupTranscript(id, transcriptID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("transcript %s not found in run %d", transcriptID, id)
	}

	w := gtf.NewWriter(out, gtf.DefaultOptions())
	if err := w.WriteTable(rows); err != nil {
		return err
	}
	return w.Flush()
}
