package search

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokTerm
	tokPhrase
	tokColon
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokAnd
	tokOr
	tokNot
	tokTo
	tokRangeStart
	tokRangeEnd
	tokCaret
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokTerm:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokColon:
		return "':'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokTo:
		return "TO"
	case tokRangeStart:
		return "range start"
	case tokRangeEnd:
		return "range end"
	case tokCaret:
		return "'^'"
	default:
		return "token"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int

	// wildcard is set for terms with an unescaped * or ?
	wildcard bool

	// inclusive is set for [ and ] range brackets
	inclusive bool
}

type lexer struct {
	input []rune
	pos   int
}

func newLexer(s string) *lexer {
	return &lexer{input: []rune(s)}
}

func isSpecial(r rune) bool {
	return strings.ContainsRune(`()[]{}:^"`, r)
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	r := l.input[l.pos]

	single := func(kind tokenKind) (token, error) {
		l.pos++
		return token{kind: kind, text: string(r), pos: start}, nil
	}

	switch r {
	case '(':
		return single(tokLParen)
	case ')':
		return single(tokRParen)
	case ':':
		return single(tokColon)
	case '^':
		return single(tokCaret)
	case '+':
		return single(tokPlus)
	case '-':
		return single(tokMinus)
	case '!':
		return single(tokNot)
	case '[', '{':
		l.pos++
		return token{kind: tokRangeStart, text: string(r), pos: start, inclusive: r == '['}, nil
	case ']', '}':
		l.pos++
		return token{kind: tokRangeEnd, text: string(r), pos: start, inclusive: r == ']'}, nil
	case '"':
		return l.phrase()
	case '&', '|':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == r {
			l.pos += 2
			if r == '&' {
				return token{kind: tokAnd, text: "&&", pos: start}, nil
			}
			return token{kind: tokOr, text: "||", pos: start}, nil
		}
	}

	return l.term()
}

func (l *lexer) phrase() (token, error) {
	start := l.pos
	l.pos++ // opening quote

	var b strings.Builder
	for l.pos < len(l.input) {
		r := l.input[l.pos]
		switch {
		case r == '\\' && l.pos+1 < len(l.input):
			b.WriteRune(l.input[l.pos+1])
			l.pos += 2
		case r == '"':
			l.pos++
			return token{kind: tokPhrase, text: b.String(), pos: start}, nil
		default:
			b.WriteRune(r)
			l.pos++
		}
	}
	return token{}, &lexError{pos: start, reason: "unterminated phrase"}
}

func (l *lexer) term() (token, error) {
	start := l.pos
	var b strings.Builder
	wildcard := false

	for l.pos < len(l.input) {
		r := l.input[l.pos]
		if unicode.IsSpace(r) || isSpecial(r) {
			break
		}
		if r == '\\' {
			if l.pos+1 >= len(l.input) {
				return token{}, &lexError{pos: l.pos, reason: "dangling escape"}
			}
			b.WriteRune(l.input[l.pos+1])
			l.pos += 2
			continue
		}
		if r == '*' || r == '?' {
			wildcard = true
		}
		b.WriteRune(r)
		l.pos++
	}

	text := b.String()
	tok := token{kind: tokTerm, text: text, pos: start, wildcard: wildcard}
	switch text {
	case "AND":
		tok.kind = tokAnd
	case "OR":
		tok.kind = tokOr
	case "NOT":
		tok.kind = tokNot
	case "TO":
		tok.kind = tokTo
	}
	return tok, nil
}

type lexError struct {
	pos    int
	reason string
}

func (e *lexError) Error() string {
	return e.reason
}
