package bibtex

import "sort"

// tokenKind identifies a lexical token.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokAt
	tokIdent
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokComma
	tokEquals
	tokHash
	tokQuote
	tokSpace
	tokEscape // Backslash plus the following byte
)

var tokenNames = map[tokenKind]string{
	tokEOF:    "end of input",
	tokAt:     "'@'",
	tokIdent:  "identifier",
	tokLBrace: "'{'",
	tokRBrace: "'}'",
	tokLParen: "'('",
	tokRParen: "')'",
	tokComma:  "','",
	tokEquals: "'='",
	tokHash:   "'#'",
	tokQuote:  "'\"'",
	tokSpace:  "whitespace",
	tokEscape: "escape",
}

func (k tokenKind) String() string {
	return tokenNames[k]
}

// token is a lexeme with its byte offset in the source.
type token struct {
	kind tokenKind
	text string
	off  int
}

// end returns the offset just past the token.
func (t token) end() int {
	return t.off + len(t.text)
}

// Lexer splits BibTeX source into structural tokens. It is context free:
// deciding what a token means is the parser's job.
type Lexer struct {
	src string
	pos int
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// Seek moves the lexer to an absolute byte offset.
func (l *Lexer) Seek(off int) {
	if off > len(l.src) {
		off = len(l.src)
	}
	l.pos = off
}

// Pos returns the offset of the next token.
func (l *Lexer) Pos() int {
	return l.pos
}

// next returns the next token.
func (l *Lexer) next() token {
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, off: len(l.src)}
	}

	start := l.pos
	c := l.src[l.pos]

	if kind, ok := punct(c); ok {
		l.pos++
		return token{kind: kind, text: l.src[start:l.pos], off: start}
	}

	switch {
	case c == '\\':
		l.pos++
		if l.pos < len(l.src) {
			l.pos++
		}
		return token{kind: tokEscape, text: l.src[start:l.pos], off: start}
	case isSpace(c):
		for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokSpace, text: l.src[start:l.pos], off: start}
	}

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isSpace(c) || c == '\\' {
			break
		}
		if _, ok := punct(c); ok {
			break
		}
		l.pos++
	}
	return token{kind: tokIdent, text: l.src[start:l.pos], off: start}
}

func punct(c byte) (tokenKind, bool) {
	switch c {
	case '@':
		return tokAt, true
	case '{':
		return tokLBrace, true
	case '}':
		return tokRBrace, true
	case '(':
		return tokLParen, true
	case ')':
		return tokRParen, true
	case ',':
		return tokComma, true
	case '=':
		return tokEquals, true
	case '#':
		return tokHash, true
	case '"':
		return tokQuote, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// atLineStart reports whether only spaces or tabs separate off from the
// previous newline (or the start of input).
func atLineStart(src string, off int) bool {
	for i := off - 1; i >= 0; i-- {
		switch src[i] {
		case ' ', '\t':
			continue
		case '\n', '\r':
			return true
		default:
			return false
		}
	}
	return true
}

// lineIndex holds the byte offset of every line start in a source.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// line returns the 1-indexed line number of a byte offset.
func (ix lineIndex) line(off int) int {
	return sort.SearchInts(ix, off+1)
}
