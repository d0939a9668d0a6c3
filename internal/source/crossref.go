package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/matsen/bibfix/internal/reference"
)

const (
	// CrossRefBaseURL is the CrossRef REST API base URL.
	CrossRefBaseURL = "https://api.crossref.org"

	// CrossRefConfidence is the confidence reported for CrossRef candidates.
	CrossRefConfidence = 0.8

	// CrossRefRate is the documented public-pool limit.
	CrossRefRate = rate.Limit(10)

	crossRefRows = 5
)

// CrossRef queries the CrossRef works API.
type CrossRef struct {
	c *Client
}

// NewCrossRef creates a CrossRef adapter.
func NewCrossRef(opts ...Option) *CrossRef {
	return &CrossRef{c: newClient(reference.SourceCrossRef, CrossRefBaseURL, CrossRefRate, opts)}
}

func (cr *CrossRef) Name() reference.Source {
	return reference.SourceCrossRef
}

// Query resolves the DOI directly and falls back to a bibliographic title
// search when there is no DOI or CrossRef does not know it.
func (cr *CrossRef) Query(ctx context.Context, q reference.Query) ([]reference.Candidate, error) {
	if doi := reference.CleanDOI(q.DOI); doi != "" {
		cands, err := cr.byDOI(ctx, doi)
		if err != nil || len(cands) > 0 {
			return cands, err
		}
	}

	if strings.TrimSpace(q.Title) == "" {
		return nil, nil
	}
	return cr.byTitle(ctx, q.Title)
}

func (cr *CrossRef) byDOI(ctx context.Context, doi string) ([]reference.Candidate, error) {
	body, err := cr.c.get(ctx, "/works/"+escapeDOI(doi), cr.params())
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status  string       `json:"status"`
		Message crossRefWork `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalid(reference.SourceCrossRef, "work", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, nil
	}
	if c, ok := resp.Message.candidate(); ok {
		return []reference.Candidate{c}, nil
	}
	return nil, nil
}

func (cr *CrossRef) byTitle(ctx context.Context, title string) ([]reference.Candidate, error) {
	params := cr.params()
	params.Set("query.bibliographic", title)
	params.Set("rows", fmt.Sprint(crossRefRows))

	body, err := cr.c.get(ctx, "/works", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Message struct {
			Items []crossRefWork `json:"items"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalid(reference.SourceCrossRef, "search results", err)
	}

	var cands []reference.Candidate
	for _, w := range resp.Message.Items {
		if c, ok := w.candidate(); ok {
			cands = append(cands, c)
		}
	}
	return cands, nil
}

// escapeDOI escapes each path segment of a DOI, keeping its slashes.
func escapeDOI(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (cr *CrossRef) params() url.Values {
	params := url.Values{}
	if cr.c.mailto != "" {
		params.Set("mailto", cr.c.mailto)
	}
	return params
}

type crossRefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d *crossRefDate) year() string {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == 0 {
		return ""
	}
	return fmt.Sprint(d.DateParts[0][0])
}

type crossRefWork struct {
	DOI            string   `json:"DOI"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	Type           string   `json:"type"`
	Publisher      string   `json:"publisher"`
	Volume         string   `json:"volume"`
	Issue          string   `json:"issue"`
	Page           string   `json:"page"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"` // Organizations
	} `json:"author"`
	PublishedPrint  *crossRefDate `json:"published-print"`
	PublishedOnline *crossRefDate `json:"published-online"`
	Issued          *crossRefDate `json:"issued"`
	Created         *crossRefDate `json:"created"`
}

func (w crossRefWork) candidate() (reference.Candidate, bool) {
	if len(w.Title) == 0 || collapseSpace(w.Title[0]) == "" {
		return reference.Candidate{}, false
	}

	c := reference.Candidate{
		Source:     reference.SourceCrossRef,
		Title:      collapseSpace(w.Title[0]),
		DOI:        reference.CleanDOI(w.DOI),
		Confidence: CrossRefConfidence,
		Extra:      map[string]string{},
	}
	c.ArXivID = reference.ArXivIDFromDOI(c.DOI)

	for _, d := range []*crossRefDate{w.PublishedPrint, w.PublishedOnline, w.Issued, w.Created} {
		if y := d.year(); y != "" {
			c.Year = y
			break
		}
	}

	for _, a := range w.Author {
		switch {
		case a.Family != "":
			c.Authors = append(c.Authors, reference.Author{First: collapseSpace(a.Given), Last: collapseSpace(a.Family)})
		case a.Name != "":
			c.Authors = append(c.Authors, reference.Author{Last: "{" + collapseSpace(a.Name) + "}"})
		}
	}

	if len(w.ContainerTitle) > 0 {
		c.Venue = collapseSpace(w.ContainerTitle[0])
	}
	if c.Venue == "" && w.Type == "posted-content" && c.ArXivID != "" {
		c.Venue = "arXiv"
	}

	switch w.Type {
	case "journal-article":
		c.EntryType = "article"
	case "proceedings-article":
		c.EntryType = "inproceedings"
	case "book-chapter":
		c.EntryType = "incollection"
	case "book", "monograph":
		c.EntryType = "book"
	}

	setExtra(c.Extra, "volume", w.Volume)
	setExtra(c.Extra, "number", w.Issue)
	setExtra(c.Extra, "pages", strings.ReplaceAll(w.Page, "-", "--"))
	setExtra(c.Extra, "publisher", w.Publisher)
	return c, true
}

func setExtra(extra map[string]string, field, value string) {
	if v := collapseSpace(value); v != "" {
		extra[field] = v
	}
}
