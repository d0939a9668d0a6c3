package pdf

import (
	"regexp"
	"strings"

	"github.com/matsen/bibfix/internal/reference"
)

// DOI pattern: 10.XXXX/... where XXXX is 4-9 digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// arXiv stamps look like "arXiv:1706.03762v7 [cs.CL] 6 Dec 2023".
var arXivPattern = regexp.MustCompile(`(?i)arxiv:\s*(\d{4}\.\d{4,5}(?:v\d+)?|[a-z\-]+(?:\.[a-z]{2})?/\d{7}(?:v\d+)?)`)

// findDOI finds the first valid DOI in text.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		// Remove trailing punctuation
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return reference.CleanDOI(match)
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	// Must have something after the /
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// findArXivID finds an arXiv stamp in text and returns the bare id.
func findArXivID(text string) string {
	m := arXivPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return reference.NormalizeArXivID(m[1])
}
