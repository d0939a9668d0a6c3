package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matsen/bibfix/internal/bibtex"
	"github.com/matsen/bibfix/internal/match"
	"github.com/matsen/bibfix/internal/reference"
)

func parseEntry(t *testing.T, src string) *bibtex.Entry {
	t.Helper()
	doc := bibtex.Parse(src)
	if len(doc.Errors) > 0 {
		t.Fatalf("Parse() errors: %v", doc.Errors)
	}
	entries := doc.Entries()
	if len(entries) != 1 {
		t.Fatalf("Parse() = %d entries, want 1", len(entries))
	}
	return entries[0]
}

func byTitle(c reference.Candidate) match.Match {
	return match.Match{Candidate: c, Score: 1, MatchedBy: match.ByTitle}
}

func byID(c reference.Candidate) match.Match {
	return match.Match{Candidate: c, Score: 1, MatchedBy: match.ByIdentifier}
}

const vaswaniEntry = `@article{vaswani2017attention,
  title = {Attention Is All You Need},
  doi = {},
  year = {},
}`

func TestMerge_FillsEmptyFields(t *testing.T) {
	e := parseEntry(t, vaswaniEntry)
	cand := reference.Candidate{
		Source: reference.SourceCrossRef,
		Title:  "Attention is all you need",
		DOI:    "10.48550/arXiv.1706.03762",
		Year:   "2017",
	}

	res := New(DefaultPolicy()).Merge(e, []match.Match{byTitle(cand)})

	if got := e.Get("doi"); got != "10.48550/arXiv.1706.03762" {
		t.Errorf("doi = %q, want %q", got, "10.48550/arXiv.1706.03762")
	}
	if got := e.Get("year"); got != "2017" {
		t.Errorf("year = %q, want %q", got, "2017")
	}
	if got := e.Get("title"); got != "Attention Is All You Need" {
		t.Errorf("title = %q, existing title must be untouched", got)
	}
	if diff := cmp.Diff([]string{"doi", "year"}, res.Changed); diff != "" {
		t.Errorf("Changed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]reference.Source{reference.SourceCrossRef}, res.AppliedSources); diff != "" {
		t.Errorf("AppliedSources mismatch (-want +got):\n%s", diff)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", res.Conflicts)
	}

	want := `@article{vaswani2017attention,
  title = {Attention Is All You Need},
  doi = {10.48550/arXiv.1706.03762},
  year = {2017},
}`
	if got := bibtex.FormatEntry(e); got != want {
		t.Errorf("FormatEntry() =\n%s\nwant\n%s", got, want)
	}
}

func TestMerge_ExistingContentWins(t *testing.T) {
	e := parseEntry(t, `@article{k, title = {My Title}, year = {2016}, journal = "NeurIPS"}`)
	cand := reference.Candidate{
		Source: reference.SourceArXiv,
		Title:  "A Different Title",
		Year:   "2017",
		Venue:  "arXiv",
	}

	res := New(DefaultPolicy()).Merge(e, []match.Match{byTitle(cand)})

	if res.HasChanges() {
		t.Errorf("Changed = %v, want none", res.Changed)
	}
	if e.Modified() {
		t.Error("entry should be unmodified")
	}
	if len(res.AppliedSources) != 0 {
		t.Errorf("AppliedSources = %v, want none", res.AppliedSources)
	}
}

func TestMerge_OverridableField(t *testing.T) {
	tests := []struct {
		name    string
		source  reference.Source
		wantDOI string
	}{
		{"crossref overrides doi", reference.SourceCrossRef, "10.1145/real"},
		{"arxiv does not", reference.SourceArXiv, "10.1/guess"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := parseEntry(t, `@article{k, title = {T}, doi = {10.1/guess}}`)
			cand := reference.Candidate{Source: tt.source, Title: "T", DOI: "10.1145/real"}

			New(DefaultPolicy()).Merge(e, []match.Match{byTitle(cand)})

			if got := e.Get("doi"); got != tt.wantDOI {
				t.Errorf("doi = %q, want %q", got, tt.wantDOI)
			}
		})
	}
}

func TestMerge_OverrideIgnoresFormatting(t *testing.T) {
	e := parseEntry(t, `@article{k, doi = {https://doi.org/10.1145/ABC}}`)
	cand := reference.Candidate{Source: reference.SourceCrossRef, Title: "T", DOI: "10.1145/abc"}

	res := New(DefaultPolicy()).Merge(e, []match.Match{byTitle(cand)})

	for _, name := range res.Changed {
		if name == "doi" {
			t.Error("an equivalent doi should not be rewritten")
		}
	}
}

func TestMerge_PriorityAndConflicts(t *testing.T) {
	crossref := reference.Candidate{Source: reference.SourceCrossRef, Title: "T", Year: "2018", Venue: "JMLR"}
	arxiv := reference.Candidate{Source: reference.SourceArXiv, Title: "T", Year: "2017", Venue: "arXiv"}
	dblp := reference.Candidate{Source: reference.SourceDBLP, Title: "T", Year: "2018", Venue: "J. Mach. Learn. Res."}

	orders := [][]match.Match{
		{byTitle(crossref), byTitle(arxiv), byTitle(dblp)},
		{byTitle(dblp), byTitle(arxiv), byTitle(crossref)},
		{byTitle(arxiv), byTitle(dblp), byTitle(crossref)},
	}

	var first *Result
	for i, matches := range orders {
		e := parseEntry(t, `@article{k, title = {T}}`)
		res := New(DefaultPolicy()).Merge(e, matches)

		if got := e.Get("year"); got != "2018" {
			t.Errorf("order %d: year = %q, want crossref's 2018", i, got)
		}
		if got := e.Get("journal"); got != "JMLR" {
			t.Errorf("order %d: journal = %q, want crossref's JMLR", i, got)
		}

		wantConflicts := map[string][]string{
			"year":    {"2018", "2017"},
			"journal": {"JMLR", "arXiv", "J. Mach. Learn. Res."},
		}
		if diff := cmp.Diff(wantConflicts, res.Conflicts); diff != "" {
			t.Errorf("order %d: Conflicts mismatch (-want +got):\n%s", i, diff)
		}

		if first == nil {
			first = &res
			continue
		}
		if bibtex.FormatEntry(first.Entry) != bibtex.FormatEntry(res.Entry) {
			t.Errorf("order %d: result depends on match order", i)
		}
	}
}

func TestMerge_IdentifierMatchFirst(t *testing.T) {
	e := parseEntry(t, `@article{k, title = {T}}`)
	crossref := reference.Candidate{Source: reference.SourceCrossRef, Title: "T", Year: "2018"}
	dblp := reference.Candidate{Source: reference.SourceDBLP, Title: "T", Year: "2017", DOI: "10.1/x"}

	res := New(DefaultPolicy()).Merge(e, []match.Match{byTitle(crossref), byID(dblp)})

	if got := e.Get("year"); got != "2017" {
		t.Errorf("year = %q, want identifier match's 2017", got)
	}
	if diff := cmp.Diff([]reference.Source{reference.SourceDBLP}, res.AppliedSources); diff != "" {
		t.Errorf("AppliedSources mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	matches := []match.Match{
		byTitle(reference.Candidate{
			Source:  reference.SourceCrossRef,
			Title:   "Attention Is All You Need",
			Authors: []reference.Author{{First: "Ashish", Last: "Vaswani"}},
			Year:    "2017",
			DOI:     "10.48550/arXiv.1706.03762",
		}),
		byID(reference.Candidate{
			Source:  reference.SourceArXiv,
			Title:   "Attention Is All You Need",
			Year:    "2017",
			ArXivID: "1706.03762",
			DOI:     "10.48550/arXiv.1706.03762",
			Extra:   map[string]string{"url": "https://arxiv.org/abs/1706.03762"},
		}),
		byTitle(reference.Candidate{
			Source: reference.SourceDBLP,
			Title:  "Attention is All you Need",
			Year:   "2017",
			Venue:  "NIPS",
			DOI:    "10.5555/3295222.3295349",
		}),
	}

	e := parseEntry(t, vaswaniEntry)
	m := New(DefaultPolicy())

	once := m.Merge(e, matches)
	textOnce := bibtex.FormatEntry(e)

	twice := m.Merge(e, matches)
	textTwice := bibtex.FormatEntry(e)

	if textOnce != textTwice {
		t.Errorf("second merge changed the entry:\n%s\nvs\n%s", textOnce, textTwice)
	}
	if twice.HasChanges() {
		t.Errorf("second merge Changed = %v, want none", twice.Changed)
	}
	if diff := cmp.Diff(once.Conflicts, twice.Conflicts); diff != "" {
		t.Errorf("Conflicts differ between runs (-once +twice):\n%s", diff)
	}
	if _, ok := once.Conflicts["doi"]; !ok {
		t.Error("expected a doi conflict between dblp and the others")
	}
	// crossref overrides doi even though the arxiv match came first
	if got := e.Get("doi"); got != "10.48550/arXiv.1706.03762" {
		t.Errorf("doi = %q", got)
	}
}

func TestMerge_NoMatches(t *testing.T) {
	e := parseEntry(t, vaswaniEntry)
	res := New(DefaultPolicy()).Merge(e, nil)

	if res.HasChanges() || e.Modified() {
		t.Error("merge without matches should change nothing")
	}
	if bibtex.FormatEntry(e) != vaswaniEntry {
		t.Error("entry should still render verbatim")
	}
}

func TestMerge_MultiByteAuthor(t *testing.T) {
	e := parseEntry(t, vaswaniEntry)
	cand := reference.Candidate{
		Source:  reference.SourceCrossRef,
		Title:   "Attention Is All You Need",
		Authors: []reference.Author{{First: "A", Last: "ẞẞẞẞẞẞ"}},
	}
	m := New(DefaultPolicy())

	m.Merge(e, []match.Match{byTitle(cand)})
	if got := e.Get("author"); got != "ẞẞẞẞẞẞ, A" {
		t.Errorf("author = %q, want %q", got, "ẞẞẞẞẞẞ, A")
	}
	if res := m.Merge(e, []match.Match{byTitle(cand)}); res.HasChanges() {
		t.Errorf("second merge Changed = %v, want none", res.Changed)
	}
}

func TestFields(t *testing.T) {
	c := reference.Candidate{
		Source: reference.SourceCrossRef,
		Title:  "Ranking & Retrieval at 100% Recall",
		Authors: []reference.Author{
			{First: "Ada", Last: "Lovelace"},
			{Last: "{OpenAI Team}"},
		},
		Year:    "2020",
		Venue:   "Proceedings of SIGIR",
		DOI:     "10.1145/{odd}_doi",
		ArXivID: "2001.00001",
		Extra:   map[string]string{"pages": "1--10", "publisher": "ACM"},
	}

	got := Fields(c, "inproceedings")
	want := []FieldValue{
		{"title", `Ranking \& Retrieval at 100\% Recall`},
		{"author", "Lovelace, Ada and {OpenAI Team}"},
		{"year", "2020"},
		{"booktitle", "Proceedings of SIGIR"},
		{"doi", "10.1145/odd_doi"},
		{"eprint", "2001.00001"},
		{"archiveprefix", "arXiv"},
		{"pages", "1--10"},
		{"publisher", "ACM"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestVenueField(t *testing.T) {
	tests := []struct {
		entryType string
		want      string
	}{
		{"article", "journal"},
		{"Article", "journal"},
		{"misc", "journal"},
		{"inproceedings", "booktitle"},
		{"InCollection", "booktitle"},
		{"book", ""},
		{"phdthesis", ""},
	}

	for _, tt := range tests {
		if got := VenueField(tt.entryType); got != tt.want {
			t.Errorf("VenueField(%q) = %q, want %q", tt.entryType, got, tt.want)
		}
	}
}

func TestParseOverridable(t *testing.T) {
	got, err := ParseOverridable([]string{"doi=crossref", "Year=arxiv+dblp"})
	if err != nil {
		t.Fatalf("ParseOverridable() error = %v", err)
	}
	want := map[string][]reference.Source{
		"doi":  {reference.SourceCrossRef},
		"year": {reference.SourceArXiv, reference.SourceDBLP},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseOverridable() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"doi", "=crossref", "doi=scholar"} {
		if _, err := ParseOverridable([]string{bad}); err == nil {
			t.Errorf("ParseOverridable(%q) should fail", bad)
		}
	}
}
