package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/bibfix/internal/enrich"
	"github.com/matsen/bibfix/internal/pdf"
)

var (
	entryTitle string
	entryDOI   string
	entryArXiv string
	entryPDF   string
	entryType  string
)

func init() {
	entryCmd.Flags().StringVar(&entryTitle, "title", "", "Title of the work")
	entryCmd.Flags().StringVar(&entryDOI, "doi", "", "DOI of the work")
	entryCmd.Flags().StringVar(&entryArXiv, "arxiv", "", "arXiv id of the work")
	entryCmd.Flags().StringVar(&entryPDF, "pdf", "", "Read missing hints from this PDF")
	entryCmd.Flags().StringVar(&entryType, "type", "", "Entry type (default: guessed from the match)")
	addLookupFlags(entryCmd)
	rootCmd.AddCommand(entryCmd)
}

var entryCmd = &cobra.Command{
	Use:   "entry KEY",
	Short: "Build one BibTeX entry from a title, DOI or arXiv id",
	Long: `Build one BibTeX entry from a title, DOI or arXiv id.

Hints not given on the command line are read from --pdf when set.

Examples:
  bibfix entry vaswani2017 --arxiv 1706.03762
  bibfix entry akiba2019 --title "Optuna: A Next-generation Hyperparameter Optimization Framework"
  bibfix entry smith2020 --pdf ~/papers/smith2020.pdf --human`,
	Args: cobra.ExactArgs(1),
	RunE: runEntry,
}

func runEntry(cmd *cobra.Command, args []string) error {
	req := enrich.EntryRequest{
		Key:     args[0],
		Type:    entryType,
		Title:   entryTitle,
		DOI:     entryDOI,
		ArXivID: entryArXiv,
	}

	if entryPDF != "" {
		hints, err := pdf.ExtractHints(entryPDF, pdf.DefaultPages)
		if err != nil {
			exitWithError(ExitIOError, "reading PDF: %v", err)
		}
		if req.DOI == "" {
			req.DOI = hints.DOI
		}
		if req.ArXivID == "" {
			req.ArXivID = hints.ArXivID
		}
		if req.Title == "" {
			req.Title = hints.Title
		}
	}

	if req.Query().IsEmpty() {
		exitWithError(ExitError, "need at least one of --title, --doi, --arxiv or a --pdf with identifiers")
	}

	a := mustSetup(cmd)
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := a.enricher.EnrichEntry(ctx, req)
	if err != nil {
		a.Close()
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		printEntryHuman(res)
		return nil
	}
	return outputJSON(res)
}
