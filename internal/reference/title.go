package reference

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// latexCommandRe matches control words (\emph, \textbf*) and control symbols (\", \&).
var latexCommandRe = regexp.MustCompile(`\\[A-Za-z]+\*?|\\.`)

// PlainText case-folds s and strips diacritics ("Schrödinger" -> "schrodinger").
func PlainText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// TitleTokens splits a title into case-folded words without LaTeX markup or
// accents. Punctuation separates words.
func TitleTokens(title string) []string {
	s := latexCommandRe.ReplaceAllString(title, "")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	s = PlainText(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// NormalizeTitle returns the title's tokens joined by single spaces.
func NormalizeTitle(title string) string {
	return strings.Join(TitleTokens(title), " ")
}
