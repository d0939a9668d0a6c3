package match

import "github.com/matsen/bibfix/internal/reference"

// Similarity computes the Sørensen–Dice coefficient of the normalized title
// token sets of a and b: 2|A∩B| / (|A|+|B|). It returns 0 when either title
// has no tokens and 1 for titles that differ only in case, accents, LaTeX
// markup, punctuation or spacing.
func Similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	return float64(2*shared) / float64(len(ta)+len(tb))
}

func tokenSet(title string) map[string]bool {
	tokens := reference.TitleTokens(title)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
