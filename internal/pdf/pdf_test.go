package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "DOI: 10.1038/nature12373", "10.1038/nature12373"},
		{"url", "https://doi.org/10.1145/3292500.3330701.", "10.1145/3292500.3330701"},
		{"trailing paren", "(see 10.1016/j.cell.2020.01.001)", "10.1016/j.cell.2020.01.001"},
		{"uppercase", "doi:10.1093/MOLBEV/MSAA015", "10.1093/MOLBEV/MSAA015"},
		{"too short", "10.1234/", ""},
		{"none", "no identifiers here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findDOI(tt.text); got != tt.want {
				t.Errorf("findDOI(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFindArXivID(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"arXiv:1706.03762v7 [cs.CL] 6 Dec 2023", "1706.03762"},
		{"ARXIV: 2101.00001", "2101.00001"},
		{"arXiv:hep-th/9901001v2", "hep-th/9901001"},
		{"arXiv:math.GT/0309136", "math.gt/0309136"},
		{"1706.03762 without a stamp", ""},
	}

	for _, tt := range tests {
		if got := findArXivID(tt.text); got != tt.want {
			t.Errorf("findArXivID(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestHintsFromPages(t *testing.T) {
	first := strings.Join([]string{
		"arXiv:1706.03762v7 [cs.CL] 2 Aug 2023",
		"Attention Is All You Need",
		"Ashish Vaswani",
	}, "\n")
	second := "References\n[1] 10.5555/3295222.3295349"

	got := hintsFromPages([]string{first, second})
	want := Hints{
		DOI:     "10.5555/3295222.3295349",
		ArXivID: "1706.03762",
		Title:   "Attention Is All You Need",
	}
	if got != want {
		t.Errorf("hintsFromPages() = %+v, want %+v", got, want)
	}
}

func TestGuessTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "skips headers",
			text: "Journal of Machine Learning Research 21 (2020)\nCopyright 2020 by the authors\nExploring   the Limits of Transfer Learning\n",
			want: "Exploring the Limits of Transfer Learning",
		},
		{
			name: "skips short lines",
			text: "Letter\nRESEARCH\nA Deep Learning Approach to Antibiotic Discovery",
			want: "A Deep Learning Approach to Antibiotic Discovery",
		},
		{
			name: "skips identifier stamps",
			text: "arXiv:2101.00001v1 [q-bio.PE] 1 Jan 2021\nPhylogenetic Inference at Scale",
			want: "Phylogenetic Inference at Scale",
		},
		{
			name: "empty",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := guessTitle(tt.text); got != tt.want {
				t.Errorf("guessTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHints_IsEmpty(t *testing.T) {
	if !(Hints{}).IsEmpty() {
		t.Error("zero Hints should be empty")
	}
	if (Hints{Title: "T"}).IsEmpty() {
		t.Error("Hints with a title should not be empty")
	}
}

func TestExtractHints_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, []byte("plain text, not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ExtractHints(path, DefaultPages); err == nil {
		t.Error("ExtractHints() should fail on a non-PDF file")
	}
}

func TestExtractHints_Missing(t *testing.T) {
	if _, err := ExtractHints(filepath.Join(t.TempDir(), "missing.pdf"), DefaultPages); err == nil {
		t.Error("ExtractHints() should fail on a missing file")
	}
}
