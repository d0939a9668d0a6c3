package bibtex

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Parser state machine states
type parserState int

const (
	stateTopLevel parserState = iota
	stateInEntryHeader
	stateInFieldName
	stateInFieldValue
)

// entryStartRe matches an entry-opening marker such as "@article{".
var entryStartRe = regexp.MustCompile(`^@[A-Za-z][\w:.+-]*[ \t]*[{(]`)

// opaqueTypes are entry types kept verbatim rather than parsed into fields.
var opaqueTypes = map[string]OpaqueKind{
	"comment":  OpaqueComment,
	"string":   OpaqueString,
	"preamble": OpaquePreamble,
}

type parser struct {
	src    string
	lines  lineIndex
	lex    *Lexer
	peeked *token
	doc    *Document
	state  parserState

	// textStart is where pending top-level text begins.
	textStart int
	// textDepth is the brace depth of pending top-level text.
	textDepth int
	straySeen bool
	lastKey   string // Key of the most recently closed entry

	// Entry being parsed.
	entry      *Entry
	entryStart int
	closer     tokenKind
	field      string // Field name awaiting a value, as written
}

// Parse parses BibTeX source. It never fails as a whole: entries that cannot
// be parsed are recorded in Document.Errors and kept as malformed blocks.
func Parse(src string) *Document {
	p := &parser{
		src:   src,
		lines: newLineIndex(src),
		lex:   NewLexer(src),
		doc:   &Document{},
	}
	p.run()
	return p.doc
}

// Read parses BibTeX from a reader.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibtex: %w", err)
	}
	return Parse(string(data)), nil
}

// ParseFile parses the BibTeX file at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

func (p *parser) run() {
	for {
		var err *MalformedEntryError

		switch p.state {
		case stateTopLevel:
			tok := p.next()
			if tok.kind == tokEOF {
				p.flushText(len(p.src))
				return
			}
			switch tok.kind {
			case tokAt:
				p.entryStart = tok.off
				p.state = stateInEntryHeader
			case tokLBrace:
				p.textDepth++
			case tokRBrace:
				if p.textDepth > 0 {
					p.textDepth--
				} else {
					p.strayBrace(tok)
				}
			}
		case stateInEntryHeader:
			err = p.header()
		case stateInFieldName:
			err = p.fieldName()
		case stateInFieldValue:
			err = p.fieldValue()
		}

		if err != nil {
			p.recover(err)
		}
	}
}

// header reads "type{key," after an '@'. An '@' that does not open an entry
// is left as top-level text.
func (p *parser) header() *MalformedEntryError {
	typ := p.skipSpace()
	if typ.kind != tokIdent {
		p.unread(typ)
		p.state = stateTopLevel
		return nil
	}
	open := p.skipSpace()
	if open.kind != tokLBrace && open.kind != tokLParen {
		p.unread(open)
		p.state = stateTopLevel
		return nil
	}

	p.flushText(p.entryStart)
	p.closer = tokRBrace
	if open.kind == tokLParen {
		p.closer = tokRParen
	}

	if kind, ok := opaqueTypes[strings.ToLower(typ.text)]; ok {
		return p.opaqueEntry(kind)
	}

	p.entry = &Entry{
		Type:   typ.text,
		Offset: p.entryStart,
		Line:   p.lines.line(p.entryStart),
	}

	var key strings.Builder
	for {
		tok := p.next()
		switch tok.kind {
		case tokComma:
			p.entry.Key = strings.TrimSpace(key.String())
			p.state = stateInFieldName
			return nil
		case p.closer:
			p.entry.Key = strings.TrimSpace(key.String())
			p.finishEntry(tok.end())
			return nil
		case tokIdent, tokEscape, tokSpace, tokLParen, tokRParen:
			key.WriteString(tok.text)
		case tokEOF:
			p.entry.Key = strings.TrimSpace(key.String())
			return p.malformed("unexpected end of input in entry header")
		default:
			p.entry.Key = strings.TrimSpace(key.String())
			return p.malformed(fmt.Sprintf("unexpected %s in cite key", tok.kind))
		}
	}
}

// opaqueEntry scans a @comment, @string or @preamble block to its closing
// delimiter and keeps it verbatim.
func (p *parser) opaqueEntry(kind OpaqueKind) *MalformedEntryError {
	depth := 0
	for {
		tok := p.next()
		switch tok.kind {
		case tokEOF:
			return p.malformed(fmt.Sprintf("unbalanced braces in @%s", kind))
		case tokLBrace:
			depth++
		case tokRBrace:
			if depth == 0 && p.closer == tokRBrace {
				p.finishOpaque(kind, tok.end())
				return nil
			}
			depth--
		case tokRParen:
			if depth == 0 && p.closer == tokRParen {
				p.finishOpaque(kind, tok.end())
				return nil
			}
		case tokAt:
			if p.opensEntry(tok) {
				return p.malformed(fmt.Sprintf("unclosed @%s before entry at line %d", kind, p.lines.line(tok.off)))
			}
		}
	}
}

// fieldName reads "name =" or the entry's closing delimiter.
func (p *parser) fieldName() *MalformedEntryError {
	tok := p.skipSpace()
	for tok.kind == tokComma {
		tok = p.skipSpace()
	}

	switch tok.kind {
	case p.closer:
		p.finishEntry(tok.end())
		return nil
	case tokIdent:
		eq := p.skipSpace()
		if eq.kind != tokEquals {
			return p.malformed(fmt.Sprintf("expected '=' after field %q, got %s", tok.text, eq.kind))
		}
		p.field = tok.text
		p.state = stateInFieldValue
		return nil
	case tokEOF:
		return p.malformed("unexpected end of input, entry not closed")
	default:
		return p.malformed(fmt.Sprintf("unexpected %s where a field name was expected", tok.kind))
	}
}

// fieldValue reads a value expression. Brace depth and the quote flag decide
// where it ends: only a ',' or closing delimiter at depth zero outside quotes.
func (p *parser) fieldValue() *MalformedEntryError {
	tok := p.skipSpace()
	start := tok.off
	end := start       // End of the last completed part
	firstPartEnd := -1 // End of the first completed part
	depth := 0
	inQuote := false

	completePart := func(at int) {
		end = at
		if firstPartEnd < 0 {
			firstPartEnd = at
		}
	}

	for {
		if tok.kind == tokEOF {
			if depth > 0 || inQuote {
				return p.malformed(fmt.Sprintf("unbalanced braces in field %q", p.field))
			}
			return p.malformed("unexpected end of input, entry not closed")
		}

		if depth == 0 && !inQuote {
			switch tok.kind {
			case tokComma, p.closer:
				if end == start {
					return p.malformed(fmt.Sprintf("missing value for field %q", p.field))
				}
				p.storeField(p.src[start:end], firstPartEnd == end)
				if tok.kind == tokComma {
					p.state = stateInFieldName
				} else {
					p.finishEntry(tok.end())
				}
				return nil
			case tokLBrace:
				depth = 1
			case tokQuote:
				inQuote = true
			case tokIdent:
				completePart(tok.end())
			case tokHash:
				end = tok.end()
			case tokSpace:
			default:
				return p.malformed(fmt.Sprintf("unexpected %s in value of field %q", tok.kind, p.field))
			}
		} else {
			switch tok.kind {
			case tokLBrace:
				depth++
			case tokRBrace:
				if depth == 0 {
					return p.malformed(fmt.Sprintf("unbalanced '}' in quoted value of field %q", p.field))
				}
				depth--
				if depth == 0 && !inQuote {
					completePart(tok.end())
				}
			case tokQuote:
				if inQuote && depth == 0 {
					inQuote = false
					completePart(tok.end())
				}
			case tokAt:
				if p.opensEntry(tok) {
					return p.malformed(fmt.Sprintf("unclosed value for field %q before entry at line %d", p.field, p.lines.line(tok.off)))
				}
			}
		}

		tok = p.next()
	}
}

// storeField records the current field. single reports whether the value
// consists of exactly one part, in which case its delimiters are stripped.
func (p *parser) storeField(raw string, single bool) {
	f := Field{
		Name:    strings.ToLower(p.field),
		RawName: p.field,
		Value:   unwrapValue(raw, single),
		Raw:     raw,
	}
	if p.entry.Fields.put(f) {
		p.doc.Warnings = append(p.doc.Warnings, Warning{
			Key:     p.entry.Key,
			Field:   f.Name,
			Line:    p.entry.Line,
			Message: fmt.Sprintf("duplicate field %q, last value kept", f.Name),
		})
	}
}

func unwrapValue(raw string, single bool) string {
	if !single || len(raw) < 2 {
		return raw
	}
	first, last := raw[0], raw[len(raw)-1]
	if (first == '{' && last == '}') || (first == '"' && last == '"') {
		return raw[1 : len(raw)-1]
	}
	return raw
}

func (p *parser) finishEntry(end int) {
	p.entry.Raw = p.src[p.entryStart:end]
	p.doc.Nodes = append(p.doc.Nodes, p.entry)
	p.lastKey = p.entry.Key
	p.entry = nil
	p.resetText(end)
	p.state = stateTopLevel
}

func (p *parser) finishOpaque(kind OpaqueKind, end int) {
	p.doc.Nodes = append(p.doc.Nodes, &OpaqueBlock{Kind: kind, Text: p.src[p.entryStart:end]})
	p.lastKey = ""
	p.resetText(end)
	p.state = stateTopLevel
}

func (p *parser) resetText(start int) {
	p.textStart = start
	p.textDepth = 0
	p.straySeen = false
}

// strayBrace warns about a '}' in top-level text with no matching '{'. It
// usually means an extra brace in a field closed the entry before it, leaving
// the remaining fields behind as plain text.
func (p *parser) strayBrace(tok token) {
	if p.straySeen {
		return
	}
	p.straySeen = true
	msg := "unmatched '}' outside any entry; text after it is kept but not parsed"
	if p.lastKey != "" {
		msg = "unmatched '}' after entry; an extra '}' may have closed the entry early"
	}
	p.doc.Warnings = append(p.doc.Warnings, Warning{
		Key:     p.lastKey,
		Line:    p.lines.line(tok.off),
		Message: msg,
	})
}

func (p *parser) flushText(upTo int) {
	if upTo > p.textStart {
		p.doc.Nodes = append(p.doc.Nodes, &OpaqueBlock{Kind: OpaqueText, Text: p.src[p.textStart:upTo]})
	}
	p.textStart = upTo
}

func (p *parser) malformed(msg string) *MalformedEntryError {
	err := &MalformedEntryError{
		Offset:  p.entryStart,
		Line:    p.lines.line(p.entryStart),
		Message: msg,
	}
	if p.entry != nil {
		err.Key = p.entry.Key
	}
	return err
}

// recover records err, keeps the failed entry's text as a malformed block,
// and resumes at the next entry marker.
func (p *parser) recover(err *MalformedEntryError) {
	p.doc.Errors = append(p.doc.Errors, err)

	resume := p.nextEntryMarker(p.entryStart + 1)
	p.doc.Nodes = append(p.doc.Nodes, &OpaqueBlock{Kind: OpaqueMalformed, Text: p.src[p.entryStart:resume]})

	p.lex.Seek(resume)
	p.peeked = nil
	p.resetText(resume)
	p.lastKey = ""
	p.entry = nil
	p.state = stateTopLevel
}

// nextEntryMarker returns the offset of the first line-start entry marker at
// or after from, or the end of input.
func (p *parser) nextEntryMarker(from int) int {
	for i := from; i < len(p.src); i++ {
		if p.src[i] == '@' && atLineStart(p.src, i) && entryStartRe.MatchString(p.src[i:]) {
			return i
		}
	}
	return len(p.src)
}

// opensEntry reports whether an '@' token begins a new entry on its own line.
func (p *parser) opensEntry(at token) bool {
	return atLineStart(p.src, at.off) && entryStartRe.MatchString(p.src[at.off:])
}

func (p *parser) next() token {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t
	}
	return p.lex.next()
}

func (p *parser) unread(t token) {
	p.peeked = &t
}

func (p *parser) skipSpace() token {
	tok := p.next()
	for tok.kind == tokSpace {
		tok = p.next()
	}
	return tok
}
