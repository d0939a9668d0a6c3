package reference

import (
	"regexp"
	"strings"
)

// arXivDOIPrefix is the DOI prefix arXiv registers for its papers.
const arXivDOIPrefix = "10.48550/arxiv."

var (
	arXivVersionRe = regexp.MustCompile(`v\d+$`)
	arXivURLRe     = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([^\s?#]+)`)
	doiRe          = regexp.MustCompile(`10\.\d{4,9}/[^\s"<>{}]+`)
)

// CleanDOI strips common URL prefixes (https://doi.org/, DOI:) and trailing
// punctuation from a DOI. The spelling is kept as the publisher registered it.
func CleanDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi.org/",
		"doi:",
	} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = strings.TrimSpace(doi[len(prefix):])
			break
		}
	}
	return strings.TrimRight(doi, ".,;")
}

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// DOIs are case-insensitive, so the result is the cleaned DOI in lowercase.
func NormalizeDOI(doi string) string {
	return strings.ToLower(CleanDOI(doi))
}

// NormalizeArXivID strips prefixes, URLs and version suffixes from an arXiv id.
// "arXiv:1706.03762v5" and "https://arxiv.org/abs/1706.03762" both become "1706.03762".
func NormalizeArXivID(id string) string {
	id = strings.TrimSpace(id)
	if m := arXivURLRe.FindStringSubmatch(id); m != nil {
		id = m[1]
	}
	if len(id) >= 6 && strings.EqualFold(id[:6], "arxiv:") {
		id = id[6:]
	}
	id = strings.TrimSuffix(strings.ToLower(id), ".pdf")
	return arXivVersionRe.ReplaceAllString(id, "")
}

// ArXivIDFromDOI returns the arXiv id carried by an arXiv DOI
// (10.48550/arXiv.<id>), or "" for any other DOI.
func ArXivIDFromDOI(doi string) string {
	doi = NormalizeDOI(doi)
	if !strings.HasPrefix(doi, arXivDOIPrefix) {
		return ""
	}
	return NormalizeArXivID(doi[len(arXivDOIPrefix):])
}

// ArXivDOI returns the DOI arXiv assigns to a paper id.
func ArXivDOI(id string) string {
	return "10.48550/arXiv." + NormalizeArXivID(id)
}

// ArXivIDFromURL extracts an arXiv id from an arxiv.org abs or pdf URL.
func ArXivIDFromURL(url string) string {
	m := arXivURLRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return NormalizeArXivID(m[1])
}

// FindDOI returns the first DOI-looking substring of s, cleaned.
func FindDOI(s string) string {
	m := doiRe.FindString(s)
	if m == "" {
		return ""
	}
	return CleanDOI(m)
}

// SameDOI reports whether two DOIs identify the same work. An arXiv DOI and
// the bare arXiv id are not compared here; see SameArXivID.
func SameDOI(a, b string) bool {
	a, b = NormalizeDOI(a), NormalizeDOI(b)
	return a != "" && a == b
}

// SameArXivID reports whether two arXiv ids identify the same paper,
// ignoring version suffixes.
func SameArXivID(a, b string) bool {
	a, b = NormalizeArXivID(a), NormalizeArXivID(b)
	return a != "" && a == b
}
