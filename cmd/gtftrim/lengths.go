package main

import (
	"bufio"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/gtftrim/internal/filter"
	"github.com/inodb/gtftrim/internal/gtf"
)

func newLengthsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lengths <input.gtf>",
		Short: "Print exon or CDS lengths per transcript or gene",
		Long: `Sum the lengths of exon or CDS rows per transcript. Keyed by gene_id or
gene_name, the length of a gene is that of its longest transcript. The output
is a two-column tab-separated table sorted by identifier, suitable for
length-normalized expression units such as RPK and TPM.`,
		Example: `  gtftrim lengths gencode.gtf
  gtftrim lengths --feature CDS --by gene_name gencode.gtf
  gtftrim lengths --biotype protein_coding --by gene_id trimmed.gtf`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runLengths(args[0],
				viper.GetString("feature"),
				viper.GetString("by"),
				viper.GetString("biotype"),
				viper.GetString("delimiter"),
				cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("feature", "exon", "Feature type to sum: exon or CDS")
	f.String("by", filter.ByTranscriptID, "Identifier: transcript_id, gene_id or gene_name")
	f.String("biotype", "", "Only count rows whose attributes contain this biotype label")
	f.String("delimiter", "\t", "Field delimiter of the input")

	return cmd
}

func runLengths(input, feature, identifier, biotype, delimiter string, out io.Writer) error {
	table, err := gtf.Load(input, gtf.Options{Delimiter: delimiter})
	if err != nil {
		return fmt.Errorf("loading annotation: %w", err)
	}
	if biotype != "" {
		table = filter.Biotype(table, biotype)
	}

	lengths, err := filter.FeatureLengths(table, feature, identifier)
	if err != nil {
		return &usageError{err}
	}
	logger.Debug("computed feature lengths",
		zap.String("feature", feature),
		zap.String("by", identifier),
		zap.Int("entries", len(lengths)))

	keys := make([]string, 0, len(lengths))
	for k := range lengths {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "%s\tlength\n", identifier)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, lengths[k])
	}
	return w.Flush()
}
