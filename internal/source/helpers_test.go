package source

import (
	"testing"

	"github.com/jarcoal/httpmock"
	"golang.org/x/time/rate"
)

// setupHTTPMock routes the default transport through httpmock for one test.
func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

// testOptions disables rate limiting and retry backoff.
func testOptions(extra ...Option) []Option {
	return append([]Option{WithRateLimit(rate.Inf, 1), WithRetry(3, 0)}, extra...)
}

const arxivAttentionFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title type="html">ArXiv Query: id_list=1706.03762</title>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <author><name>Niki Parmar</name></author>
    <arxiv:doi xmlns:arxiv="http://arxiv.org/schemas/atom">10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref xmlns:arxiv="http://arxiv.org/schemas/atom">NIPS 2017</arxiv:journal_ref>
  </entry>
</feed>`

const arxivEmptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title type="html">ArXiv Query</title>
</feed>`

const arxivErrorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_bogus</id>
    <title>Error</title>
  </entry>
</feed>`

const crossRefWorkJSON = `{
  "status": "ok",
  "message-type": "work",
  "message": {
    "DOI": "10.48550/arXiv.1706.03762",
    "type": "posted-content",
    "title": ["Attention Is All You Need"],
    "publisher": "arXiv",
    "author": [
      {"given": "Ashish", "family": "Vaswani", "sequence": "first"},
      {"given": "Noam", "family": "Shazeer", "sequence": "additional"}
    ],
    "created": {"date-parts": [[2017, 6, 13]]},
    "issued": {"date-parts": [[2017]]}
  }
}`

const crossRefSearchJSON = `{
  "status": "ok",
  "message-type": "work-list",
  "message": {
    "items": [
      {
        "DOI": "10.1145/3292500.3330701",
        "type": "proceedings-article",
        "title": ["Optuna: A Next-generation Hyperparameter Optimization Framework"],
        "container-title": ["Proceedings of the 25th ACM SIGKDD"],
        "publisher": "ACM",
        "page": "2623-2631",
        "author": [{"given": "Takuya", "family": "Akiba"}],
        "published-print": {"date-parts": [[2019, 7, 25]]},
        "published-online": {"date-parts": [[2019, 7, 20]]},
        "created": {"date-parts": [[2019, 7, 26]]}
      },
      {"DOI": "10.1/untitled", "title": []},
      {
        "DOI": "10.5555/org",
        "type": "journal-article",
        "title": ["Global Report"],
        "author": [{"name": "World Health Organization"}],
        "published-online": {"date-parts": [[2020]]},
        "volume": "12",
        "issue": "3"
      }
    ]
  }
}`

const dblpSearchJSON = `{
  "result": {
    "hits": {
      "@total": "2",
      "hit": [
        {
          "info": {
            "authors": {"author": [
              {"@pid": "1", "text": "Ashish Vaswani"},
              {"@pid": "2", "text": "Wei Wang 0001"}
            ]},
            "title": "Attention is All you Need.",
            "venue": "NIPS",
            "pages": "5998-6008",
            "year": "2017",
            "type": "Conference and Workshop Papers",
            "ee": "https://proceedings.neurips.cc/paper/2017/hash/3f5ee243.html"
          }
        },
        {
          "info": {
            "authors": {"author": {"@pid": "1", "text": "Ashish Vaswani"}},
            "title": "Attention Is All You Need.",
            "venue": "CoRR",
            "volume": "abs/1706.03762",
            "year": "2017",
            "type": "Informal and Other Publications",
            "ee": ["https://arxiv.org/abs/1706.03762"]
          }
        }
      ]
    }
  }
}`
