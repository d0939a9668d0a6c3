package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/bibfix/internal/reference"
)

const (
	// ArXivBaseURL is the arXiv export API endpoint.
	ArXivBaseURL = "https://export.arxiv.org/api/query"

	// ArXivConfidence is the confidence reported for arXiv candidates.
	ArXivConfidence = 0.9

	arXivMaxResults = 5
)

// ArXivRate is one request every three seconds per the arXiv API terms.
var ArXivRate = rate.Every(3 * time.Second)

// ArXiv queries the arXiv Atom API.
type ArXiv struct {
	c *Client
}

// NewArXiv creates an arXiv adapter.
func NewArXiv(opts ...Option) *ArXiv {
	return &ArXiv{c: newClient(reference.SourceArXiv, ArXivBaseURL, ArXivRate, opts)}
}

func (a *ArXiv) Name() reference.Source {
	return reference.SourceArXiv
}

// Query looks the paper up by arXiv id (also taken from an arXiv DOI) and
// falls back to a title search when the id finds nothing.
func (a *ArXiv) Query(ctx context.Context, q reference.Query) ([]reference.Candidate, error) {
	id := q.ArXivID
	if id == "" {
		id = reference.ArXivIDFromDOI(q.DOI)
	}

	if id != "" {
		params := url.Values{}
		params.Set("id_list", reference.NormalizeArXivID(id))
		params.Set("max_results", "1")
		cands, err := a.fetch(ctx, params)
		if err != nil || len(cands) > 0 {
			return cands, err
		}
	}

	title := strings.Join(reference.TitleTokens(q.Title), " ")
	if title == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("search_query", fmt.Sprintf(`ti:"%s"`, title))
	params.Set("max_results", fmt.Sprint(arXivMaxResults))
	return a.fetch(ctx, params)
}

func (a *ArXiv) fetch(ctx context.Context, params url.Values) ([]reference.Candidate, error) {
	body, err := a.c.get(ctx, "", params)
	if err != nil {
		return nil, err
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, invalid(reference.SourceArXiv, "atom feed", err)
	}

	var cands []reference.Candidate
	for _, e := range feed.Entries {
		if c, ok := e.candidate(); ok {
			cands = append(cands, c)
		}
	}
	return cands, nil
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []arxivEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type arxivEntry struct {
	ID        string `xml:"http://www.w3.org/2005/Atom id"`
	Title     string `xml:"http://www.w3.org/2005/Atom title"`
	Published string `xml:"http://www.w3.org/2005/Atom published"`
	Authors   []struct {
		Name string `xml:"http://www.w3.org/2005/Atom name"`
	} `xml:"http://www.w3.org/2005/Atom author"`
	DOI        string `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

func (e arxivEntry) candidate() (reference.Candidate, bool) {
	// The API reports errors (e.g. a malformed id) as a feed entry.
	if strings.Contains(e.ID, "/api/errors") {
		return reference.Candidate{}, false
	}
	title := collapseSpace(e.Title)
	if title == "" {
		return reference.Candidate{}, false
	}

	id := reference.ArXivIDFromURL(e.ID)
	c := reference.Candidate{
		Source:     reference.SourceArXiv,
		Title:      title,
		ArXivID:    id,
		DOI:        reference.CleanDOI(e.DOI),
		Venue:      "arXiv",
		Confidence: ArXivConfidence,
		Extra:      map[string]string{},
	}
	if len(e.Published) >= 4 {
		c.Year = e.Published[:4]
	}
	for _, a := range e.Authors {
		if name := collapseSpace(a.Name); name != "" {
			c.Authors = append(c.Authors, reference.SplitAuthorName(name))
		}
	}
	if id != "" {
		c.Extra["url"] = "https://arxiv.org/abs/" + id
	}
	if ref := collapseSpace(e.JournalRef); ref != "" {
		c.Extra["note"] = ref
	}
	return c, true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
