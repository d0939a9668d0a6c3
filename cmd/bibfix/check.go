package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/bibfix/internal/bibtex"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Parse a .bib file and report problems",
	Long: `Parse a .bib file without querying any source.

Reports malformed entries, parser warnings and duplicate cite keys. Exits
with status 3 when the file contains malformed entries.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status  string       `json:"status"`
	Path    string       `json:"path"`
	Entries int          `json:"entries"`
	Issues  []CheckIssue `json:"issues"`
}

// CheckIssue represents a single issue found during check.
type CheckIssue struct {
	Type    string `json:"type"`
	Key     string `json:"key,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	result, code, err := checkFile(path)
	if err != nil {
		exitWithError(ExitIOError, "reading %s: %v", path, err)
	}

	if humanOutput {
		printCheckHuman(result)
	} else {
		outputJSON(result)
	}

	if code != ExitSuccess {
		os.Exit(code)
	}
	return nil
}

// checkFile parses path and collects its issues. The exit code is
// ExitDataError when any entry is malformed; warnings and duplicate keys
// alone do not fail the check.
func checkFile(path string) (CheckResult, int, error) {
	doc, err := bibtex.ParseFile(path)
	if err != nil {
		return CheckResult{}, ExitIOError, err
	}

	issues := []CheckIssue{}
	for _, perr := range doc.Errors {
		issues = append(issues, CheckIssue{
			Type:    "malformed_entry",
			Key:     perr.Key,
			Line:    perr.Line,
			Message: perr.Message,
		})
	}
	for _, w := range doc.Warnings {
		issues = append(issues, CheckIssue{
			Type:    "warning",
			Key:     w.Key,
			Line:    w.Line,
			Message: w.String(),
		})
	}
	for _, key := range doc.DuplicateKeys() {
		issues = append(issues, CheckIssue{
			Type:    "duplicate_key",
			Key:     key,
			Message: fmt.Sprintf("cite key %q is used more than once", key),
		})
	}

	status := "ok"
	if len(issues) > 0 {
		status = "issues"
	}
	code := ExitSuccess
	if len(doc.Errors) > 0 {
		code = ExitDataError
	}

	return CheckResult{
		Status:  status,
		Path:    path,
		Entries: len(doc.Entries()),
		Issues:  issues,
	}, code, nil
}

func printCheckHuman(r CheckResult) {
	if len(r.Issues) == 0 {
		outputHuman("%s: OK\n\n%d entries checked\n", r.Path, r.Entries)
		return
	}
	outputHuman("%s: %d issues found\n\n", r.Path, len(r.Issues))
	for _, issue := range r.Issues {
		switch issue.Type {
		case "malformed_entry":
			outputHuman("  [ERROR] line %d: %s\n", issue.Line, issue.Message)
		default:
			outputHuman("  [WARN] %s\n", issue.Message)
		}
	}
	outputHuman("\n%d entries checked\n", r.Entries)
}
