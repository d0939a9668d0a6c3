package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/bibfix/internal/enrich"
)

var (
	enrichOutput string
	enrichDryRun bool
)

func init() {
	enrichCmd.Flags().StringVarP(&enrichOutput, "output", "o", "", "Write the result here instead of overwriting FILE")
	enrichCmd.Flags().BoolVar(&enrichDryRun, "dry-run", false, "Report what would change without writing")
	addLookupFlags(enrichCmd)
	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich FILE",
	Short: "Complete every entry of a .bib file",
	Long: `Complete every entry of a .bib file from arXiv, CrossRef and DBLP.

Entries are enriched concurrently and the file is rewritten atomically once
all of them are done. Entries that fail to parse or that no source matches
are left exactly as they were. Comments, @string and @preamble blocks are
preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func runEnrich(cmd *cobra.Command, args []string) error {
	a := mustSetup(cmd)
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, code, err := enrichFile(ctx, a.enricher, args[0], enrich.FileOptions{
		Output: enrichOutput,
		DryRun: enrichDryRun,
	})
	if err != nil {
		a.Close()
		exitWithError(code, "%v", err)
	}

	if humanOutput {
		printReportHuman(report)
		return nil
	}
	return outputJSON(report)
}

// enrichFile runs the enricher over path and maps a failure to its exit
// code: ExitIOError when the file could not be read or written.
func enrichFile(ctx context.Context, e *enrich.Enricher, path string, opts enrich.FileOptions) (enrich.Report, int, error) {
	report, err := e.EnrichFile(ctx, path, opts)
	if err != nil {
		if errors.Is(err, enrich.ErrIO) {
			return report, ExitIOError, err
		}
		return report, ExitError, err
	}
	return report, ExitSuccess, nil
}
