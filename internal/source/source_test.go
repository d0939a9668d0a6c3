package source

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/matsen/bibfix/internal/cache"
	"github.com/matsen/bibfix/internal/reference"
)

func TestArXiv_QueryByID(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://export\.arxiv\.org/api/query\?.*id_list=1706\.03762`,
		httpmock.NewStringResponder(http.StatusOK, arxivAttentionFeed))

	a := NewArXiv(testOptions()...)
	cands, err := a.Query(context.Background(), reference.Query{ArXivID: "arXiv:1706.03762v2"})

	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, reference.SourceArXiv, c.Source)
	assert.Equal(t, "Attention Is All You Need", c.Title)
	assert.Equal(t, "1706.03762", c.ArXivID)
	assert.Equal(t, "10.48550/arXiv.1706.03762", c.DOI)
	assert.Equal(t, "2017", c.Year)
	assert.Equal(t, "arXiv", c.Venue)
	assert.InDelta(t, ArXivConfidence, c.Confidence, 1e-9)
	require.Len(t, c.Authors, 3)
	assert.Equal(t, reference.Author{First: "Ashish", Last: "Vaswani"}, c.Authors[0])
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", c.Extra["url"])
	assert.Equal(t, "NIPS 2017", c.Extra["note"])
}

func TestArXiv_IDFromDOI(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~id_list=1706\.03762`,
		httpmock.NewStringResponder(http.StatusOK, arxivAttentionFeed))

	a := NewArXiv(testOptions()...)
	cands, err := a.Query(context.Background(), reference.Query{DOI: "10.48550/arXiv.1706.03762"})

	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestArXiv_FallsBackToTitle(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~id_list=`,
		httpmock.NewStringResponder(http.StatusOK, arxivEmptyFeed))
	httpmock.RegisterResponder("GET", `=~search_query=ti`,
		httpmock.NewStringResponder(http.StatusOK, arxivAttentionFeed))

	a := NewArXiv(testOptions()...)
	cands, err := a.Query(context.Background(), reference.Query{
		ArXivID: "9999.99999",
		Title:   "Attention Is {All} You Need",
	})

	require.NoError(t, err)
	assert.Len(t, cands, 1)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestArXiv_ErrorEntryIsNotACandidate(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://export\.arxiv\.org`,
		httpmock.NewStringResponder(http.StatusOK, arxivErrorFeed))

	a := NewArXiv(testOptions()...)
	cands, err := a.Query(context.Background(), reference.Query{ArXivID: "bogus"})

	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestArXiv_EmptyQuery(t *testing.T) {
	setupHTTPMock(t)

	a := NewArXiv(testOptions()...)
	cands, err := a.Query(context.Background(), reference.Query{})

	require.NoError(t, err)
	assert.Empty(t, cands)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestArXiv_InvalidXML(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://export\.arxiv\.org`,
		httpmock.NewStringResponder(http.StatusOK, "<feed><entry>"))

	a := NewArXiv(testOptions()...)
	_, err := a.Query(context.Background(), reference.Query{Title: "anything"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.True(t, IsUnavailable(err))
}

func TestCrossRef_QueryByDOI(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.crossref\.org/works/10\.48550/arXiv\.1706\.03762`,
		httpmock.NewStringResponder(http.StatusOK, crossRefWorkJSON))

	cr := NewCrossRef(testOptions(WithMailto("me@example.org"))...)
	cands, err := cr.Query(context.Background(), reference.Query{DOI: "https://doi.org/10.48550/arXiv.1706.03762"})

	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, reference.SourceCrossRef, c.Source)
	assert.Equal(t, "10.48550/arXiv.1706.03762", c.DOI)
	assert.Equal(t, "1706.03762", c.ArXivID)
	assert.Equal(t, "2017", c.Year, "issued is used when print and online dates are absent")
	assert.Equal(t, "arXiv", c.Venue)
	assert.Equal(t, []reference.Author{
		{First: "Ashish", Last: "Vaswani"},
		{First: "Noam", Last: "Shazeer"},
	}, c.Authors)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestCrossRef_MailtoParameter(t *testing.T) {
	setupHTTPMock(t)

	var gotMailto, gotUA string
	httpmock.RegisterResponder("GET", `=~^https://api\.crossref\.org/works`,
		func(req *http.Request) (*http.Response, error) {
			gotMailto = req.URL.Query().Get("mailto")
			gotUA = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(http.StatusOK, crossRefSearchJSON), nil
		})

	cr := NewCrossRef(testOptions(WithMailto("me@example.org"))...)
	_, err := cr.Query(context.Background(), reference.Query{Title: "Optuna"})

	require.NoError(t, err)
	assert.Equal(t, "me@example.org", gotMailto)
	assert.Contains(t, gotUA, "mailto:me@example.org")
}

func TestCrossRef_TitleSearch(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.crossref\.org/works\?.*query\.bibliographic=Optuna`,
		httpmock.NewStringResponder(http.StatusOK, crossRefSearchJSON))

	cr := NewCrossRef(testOptions()...)
	cands, err := cr.Query(context.Background(), reference.Query{Title: "Optuna"})

	require.NoError(t, err)
	require.Len(t, cands, 2, "untitled items are skipped")

	optuna := cands[0]
	assert.Equal(t, "2019", optuna.Year)
	assert.Equal(t, "Proceedings of the 25th ACM SIGKDD", optuna.Venue)
	assert.Equal(t, "inproceedings", optuna.EntryType)
	assert.Equal(t, "2623--2631", optuna.Extra["pages"])
	assert.Equal(t, "ACM", optuna.Extra["publisher"])
	assert.Empty(t, optuna.ArXivID)

	who := cands[1]
	assert.Equal(t, []reference.Author{{Last: "{World Health Organization}"}}, who.Authors)
	assert.Equal(t, "2020", who.Year)
	assert.Equal(t, "12", who.Extra["volume"])
	assert.Equal(t, "3", who.Extra["number"])
	assert.Equal(t, "article", who.EntryType)
}

func TestCrossRef_UnknownDOIFallsBackToTitle(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.crossref\.org/works/10\.9999`,
		httpmock.NewStringResponder(http.StatusNotFound, "Resource not found."))
	httpmock.RegisterResponder("GET", `=~^https://api\.crossref\.org/works\?`,
		httpmock.NewStringResponder(http.StatusOK, crossRefSearchJSON))

	cr := NewCrossRef(testOptions()...)
	cands, err := cr.Query(context.Background(), reference.Query{DOI: "10.9999/nope", Title: "Optuna"})

	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestCrossRef_NotFoundWithoutTitle(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.crossref\.org/works/`,
		httpmock.NewStringResponder(http.StatusNotFound, "Resource not found."))

	cr := NewCrossRef(testOptions()...)
	cands, err := cr.Query(context.Background(), reference.Query{DOI: "10.9999/nope"})

	require.NoError(t, err, "not found is an empty result, not an error")
	assert.Empty(t, cands)
}

func TestDBLP_Query(t *testing.T) {
	setupHTTPMock(t)

	var gotQuery string
	httpmock.RegisterResponder("GET", `=~^https://dblp\.org/search/publ/api`,
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query().Get("q")
			assert.Equal(t, "json", req.URL.Query().Get("format"))
			return httpmock.NewStringResponse(http.StatusOK, dblpSearchJSON), nil
		})

	d := NewDBLP(testOptions()...)
	cands, err := d.Query(context.Background(), reference.Query{Title: "Attention Is All You Need!"})

	require.NoError(t, err)
	assert.Equal(t, "attention is all you need", gotQuery)
	require.Len(t, cands, 2)

	conf := cands[0]
	assert.Equal(t, "Attention is All you Need", conf.Title, "trailing period is dropped")
	assert.Equal(t, "NIPS", conf.Venue)
	assert.Equal(t, "inproceedings", conf.EntryType)
	assert.Equal(t, "5998--6008", conf.Extra["pages"])
	require.Len(t, conf.Authors, 2)
	assert.Equal(t, reference.Author{First: "Wei", Last: "Wang"}, conf.Authors[1], "homonym number is dropped")
	assert.InDelta(t, DBLPConfidence, conf.Confidence, 1e-9)

	corr := cands[1]
	require.Len(t, corr.Authors, 1, "a single author arrives as an object")
	assert.Equal(t, "1706.03762", corr.ArXivID)
	assert.Equal(t, "arXiv", corr.Venue)
}

func TestDBLP_NoTitle(t *testing.T) {
	setupHTTPMock(t)

	d := NewDBLP(testOptions()...)
	cands, err := d.Query(context.Background(), reference.Query{DOI: "10.1/x"})

	require.NoError(t, err)
	assert.Empty(t, cands)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://dblp\.org`,
		httpmock.ResponderFromMultipleResponses([]*http.Response{
			httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"),
			httpmock.NewStringResponse(http.StatusTooManyRequests, "slow down"),
			httpmock.NewStringResponse(http.StatusOK, dblpSearchJSON),
		}))

	d := NewDBLP(testOptions()...)
	cands, err := d.Query(context.Background(), reference.Query{Title: "attention"})

	require.NoError(t, err)
	assert.Len(t, cands, 2)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://dblp\.org`,
		httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	d := NewDBLP(testOptions()...)
	_, err := d.Query(context.Background(), reference.Query{Title: "attention"})

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, DefaultMaxAttempts, httpmock.GetTotalCallCount())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://dblp\.org`,
		httpmock.NewStringResponder(http.StatusBadRequest, "bad"))

	d := NewDBLP(testOptions()...)
	_, err := d.Query(context.Background(), reference.Query{Title: "attention"})

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, reference.SourceDBLP, apiErr.Source)
}

func TestClient_NetworkErrorIsUnavailable(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://dblp\.org`,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	d := NewDBLP(testOptions(WithRetry(1, 0))...)
	_, err := d.Query(context.Background(), reference.Query{Title: "attention"})

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClient_ContextCancelled(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://dblp\.org`,
		httpmock.NewStringResponder(http.StatusOK, dblpSearchJSON))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDBLP(testOptions()...)
	_, err := d.Query(ctx, reference.Query{Title: "attention"})

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_RateLimitWaitPastDeadline(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder("GET", `=~^https://dblp\.org`,
		httpmock.NewStringResponder(http.StatusOK, dblpSearchJSON))

	d := NewDBLP(WithRateLimit(rate.Every(time.Hour), 1), WithRetry(3, 0))
	_, err := d.Query(context.Background(), reference.Query{Title: "attention"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = d.Query(ctx, reference.Query{Title: "attention"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNew(t *testing.T) {
	for _, src := range reference.AllSources {
		a, err := New(src)
		require.NoError(t, err)
		assert.Equal(t, src, a.Name())
	}

	_, err := New("scholar")
	assert.Error(t, err)
}

func TestCached(t *testing.T) {
	calls := 0
	inner := Func{
		Source: reference.SourceDBLP,
		Fn: func(ctx context.Context, q reference.Query) ([]reference.Candidate, error) {
			calls++
			if q.Title == "fail" {
				return nil, unavailable(reference.SourceDBLP, errors.New("down"))
			}
			if q.Title == "nothing" {
				return nil, nil
			}
			return []reference.Candidate{{Source: reference.SourceDBLP, Title: q.Title}}, nil
		},
	}

	store := cache.NewMemory(0, 0)
	c := NewCached(inner, store, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cands, err := c.Query(ctx, reference.Query{Title: "Hit"})
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, "Hit", cands[0].Title)
	}
	assert.Equal(t, 1, calls, "second lookup served from cache")

	for i := 0; i < 2; i++ {
		cands, err := c.Query(ctx, reference.Query{Title: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, cands)
	}
	assert.Equal(t, 2, calls, "empty answers are cached too")

	for i := 0; i < 2; i++ {
		_, err := c.Query(ctx, reference.Query{Title: "fail"})
		require.Error(t, err)
	}
	assert.Equal(t, 4, calls, "failures are not cached")

	assert.Equal(t, reference.SourceDBLP, c.Name())
}

func TestCacheKey(t *testing.T) {
	a := cacheKey(reference.SourceArXiv, reference.Query{ArXivID: "arXiv:1706.03762v2", Title: "Attention  is all you need"})
	b := cacheKey(reference.SourceArXiv, reference.Query{ArXivID: "1706.03762", Title: "Attention Is All You Need"})
	assert.Equal(t, a, b, "equivalent queries share a key")
	assert.True(t, strings.HasPrefix(a, "v1:arxiv:"), a)
	assert.Len(t, a, len("v1:arxiv:")+64)

	assert.NotEqual(t, a, cacheKey(reference.SourceDBLP, reference.Query{ArXivID: "1706.03762", Title: "Attention Is All You Need"}))
	assert.NotEqual(t, a, cacheKey(reference.SourceArXiv, reference.Query{ArXivID: "1706.03762"}))
}
