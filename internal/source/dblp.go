package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/matsen/bibfix/internal/reference"
)

const (
	// DBLPBaseURL is the DBLP publication search API.
	DBLPBaseURL = "https://dblp.org/search/publ/api"

	// DBLPConfidence is the confidence reported for DBLP candidates.
	DBLPConfidence = 0.85

	// DBLPRate keeps well under DBLP's unpublished throttling threshold.
	DBLPRate = rate.Limit(2)

	dblpHits = 5
)

// dblpHomonymRe matches the disambiguation number DBLP appends to names ("Wei Wang 0001").
var dblpHomonymRe = regexp.MustCompile(`\s+\d{4}$`)

// DBLP queries the DBLP publication search.
type DBLP struct {
	c *Client
}

// NewDBLP creates a DBLP adapter.
func NewDBLP(opts ...Option) *DBLP {
	return &DBLP{c: newClient(reference.SourceDBLP, DBLPBaseURL, DBLPRate, opts)}
}

func (d *DBLP) Name() reference.Source {
	return reference.SourceDBLP
}

// Query searches DBLP by title. DBLP has no identifier lookup, so queries
// without a title return nothing.
func (d *DBLP) Query(ctx context.Context, q reference.Query) ([]reference.Candidate, error) {
	title := strings.Join(reference.TitleTokens(q.Title), " ")
	if title == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", title)
	params.Set("format", "json")
	params.Set("h", fmt.Sprint(dblpHits))

	body, err := d.c.get(ctx, "", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Hits struct {
				Hit []struct {
					Info dblpInfo `json:"info"`
				} `json:"hit"`
			} `json:"hits"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalid(reference.SourceDBLP, "search results", err)
	}

	var cands []reference.Candidate
	for _, h := range resp.Result.Hits.Hit {
		if c, ok := h.Info.candidate(); ok {
			cands = append(cands, c)
		}
	}
	return cands, nil
}

type dblpAuthor struct {
	Text string `json:"text"`
}

// oneOrMany decodes a JSON value that DBLP sends as a single item when
// there is one and as an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

type dblpInfo struct {
	Authors struct {
		Author oneOrMany[dblpAuthor] `json:"author"`
	} `json:"authors"`
	Title  string            `json:"title"`
	Venue  oneOrMany[string] `json:"venue"`
	Year   string            `json:"year"`
	Type   string            `json:"type"`
	DOI    string            `json:"doi"`
	EE     oneOrMany[string] `json:"ee"`
	Volume string            `json:"volume"`
	Number string            `json:"number"`
	Pages  string            `json:"pages"`
}

func (i dblpInfo) candidate() (reference.Candidate, bool) {
	title := strings.TrimSuffix(collapseSpace(i.Title), ".")
	if title == "" {
		return reference.Candidate{}, false
	}

	c := reference.Candidate{
		Source:     reference.SourceDBLP,
		Title:      title,
		Year:       i.Year,
		DOI:        reference.CleanDOI(i.DOI),
		Confidence: DBLPConfidence,
		Extra:      map[string]string{},
	}
	if len(i.Venue) > 0 {
		c.Venue = collapseSpace(i.Venue[0])
	}

	for _, a := range i.Authors.Author {
		name := dblpHomonymRe.ReplaceAllString(collapseSpace(a.Text), "")
		if name != "" {
			c.Authors = append(c.Authors, reference.SplitAuthorName(name))
		}
	}

	for _, ee := range i.EE {
		if id := reference.ArXivIDFromURL(ee); id != "" {
			c.ArXivID = id
		}
		if c.DOI == "" {
			c.DOI = reference.FindDOI(ee)
		}
	}
	if c.ArXivID == "" {
		c.ArXivID = reference.ArXivIDFromDOI(c.DOI)
	}
	// DBLP lists arXiv preprints under the venue "CoRR".
	if c.Venue == "CoRR" && c.ArXivID != "" {
		c.Venue = "arXiv"
	}

	switch i.Type {
	case "Journal Articles":
		c.EntryType = "article"
	case "Conference and Workshop Papers":
		c.EntryType = "inproceedings"
	case "Books and Theses":
		c.EntryType = "book"
	}

	setExtra(c.Extra, "volume", i.Volume)
	setExtra(c.Extra, "number", i.Number)
	setExtra(c.Extra, "pages", strings.ReplaceAll(strings.ReplaceAll(i.Pages, "--", "-"), "-", "--"))
	return c, true
}
