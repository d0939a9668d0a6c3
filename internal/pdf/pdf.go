// Package pdf extracts identifier hints (DOI, arXiv id, title) from the
// first pages of a paper's PDF.
package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultPages is how many leading pages are searched for identifiers.
const DefaultPages = 3

// Hints are the identifiers found in a PDF. Any field may be empty.
type Hints struct {
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
	Title   string `json:"title,omitempty"`
}

// IsEmpty reports whether nothing was found.
func (h Hints) IsEmpty() bool {
	return h.DOI == "" && h.ArXivID == "" && h.Title == ""
}

// ExtractHints reads the PDF at path and looks for identifiers in its first
// maxPages pages. A PDF without identifiers is not an error.
func ExtractHints(path string, maxPages int) (Hints, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Hints{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return hintsFromPages(pageTexts(r, maxPages)), nil
}

// ExtractHintsReader is ExtractHints for an in-memory PDF.
func ExtractHintsReader(ra io.ReaderAt, size int64, maxPages int) (Hints, error) {
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return Hints{}, fmt.Errorf("reading pdf: %w", err)
	}
	return hintsFromPages(pageTexts(r, maxPages)), nil
}

// pageTexts returns the plain text of the first maxPages pages. Pages that
// fail to decode come back empty.
func pageTexts(r *pdf.Reader, maxPages int) []string {
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	texts := make([]string, 0, maxPages)
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, text)
	}
	return texts
}

// hintsFromPages searches page texts in order. The title guess only comes
// from the first page.
func hintsFromPages(pages []string) Hints {
	var h Hints
	for _, text := range pages {
		if h.DOI == "" {
			h.DOI = findDOI(text)
		}
		if h.ArXivID == "" {
			h.ArXivID = findArXivID(text)
		}
	}
	if len(pages) > 0 {
		h.Title = guessTitle(pages[0])
	}
	return h
}

// guessTitle returns the first substantial line of the first page.
func guessTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		// Skip short lines, headers, etc.
		if len(line) > 20 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

// isHeaderLine checks if a line is likely a header/footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "copyright"), strings.Contains(lower, "preprint"):
		return true
	case strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	case findArXivID(line) != "" || findDOI(line) != "":
		return true
	}
	return false
}
