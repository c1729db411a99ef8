package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sha1n/relic-history/internal/domain"
)

// ParseError reports a query string that could not be parsed.
type ParseError struct {
	Query  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q at offset %d: %s", e.Query, e.Offset, e.Reason)
}

// Is classifies every ParseError as domain.ErrQueryParse.
func (e *ParseError) Is(target error) bool {
	return target == domain.ErrQueryParse
}

// QueryCompiler parses query strings in classic syntax.
//
// Range and term queries on RevisionNumber and CopyRevisionNumber become
// numeric queries, and on Date become numeric queries over epoch
// milliseconds. When a bound does not parse as a number or date the query
// falls back to a lexicographic one instead of failing.
type QueryCompiler struct {
	DefaultField string
}

// NewQueryCompiler creates a compiler whose default field is Message.
func NewQueryCompiler() *QueryCompiler {
	return &QueryCompiler{DefaultField: domain.DefaultQueryField}
}

// ParseQuery parses s with the default compiler.
func ParseQuery(s string) (Query, error) {
	return NewQueryCompiler().Parse(s)
}

// Parse compiles s into a Query.
func (c *QueryCompiler) Parse(s string) (Query, error) {
	field := c.DefaultField
	if field == "" {
		field = domain.DefaultQueryField
	}

	p := &parser{input: s, lex: newLexer(s)}
	if err := p.advance(); err != nil {
		return nil, err
	}

	q, err := p.parseQuery(field, false)
	if err != nil {
		return nil, err
	}
	return q, nil
}

type conjunction int

const (
	conjNone conjunction = iota
	conjAnd
	conjOr
)

type modifier int

const (
	modNone modifier = iota
	modRequired
	modProhibited
)

type parser struct {
	input string
	lex   *lexer
	tok   token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		var le *lexError
		if errors.As(err, &le) {
			return p.errorAt(le.pos, "%s", le.reason)
		}
		return p.errorAt(p.lex.pos, "%s", err.Error())
	}
	p.tok = t
	return nil
}

func (p *parser) errorAt(pos int, format string, args ...any) error {
	return &ParseError{Query: p.input, Offset: pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected() error {
	return p.errorAt(p.tok.pos, "unexpected %s", p.tok.kind)
}

// parseQuery reads clauses until the end of input or, when nested, a closing parenthesis.
func (p *parser) parseQuery(field string, nested bool) (Query, error) {
	var clauses []BooleanClause

	for {
		switch p.tok.kind {
		case tokEOF:
			if nested {
				return nil, p.errorAt(p.tok.pos, "missing ')'")
			}
			return p.finish(clauses)
		case tokRParen:
			if !nested {
				return nil, p.unexpected()
			}
			return p.finish(clauses)
		}

		conj := conjNone
		if p.tok.kind == tokAnd || p.tok.kind == tokOr {
			if len(clauses) == 0 {
				return nil, p.unexpected()
			}
			conj = conjOr
			if p.tok.kind == tokAnd {
				conj = conjAnd
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}

		mod := modNone
		switch p.tok.kind {
		case tokPlus:
			mod = modRequired
		case tokMinus, tokNot:
			mod = modProhibited
		}
		if mod != modNone {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}

		q, err := p.parseClause(field)
		if err != nil {
			return nil, err
		}
		clauses = addClause(clauses, conj, mod, q)
	}
}

// addClause applies classic default-OR semantics: AND makes both neighbours
// required unless prohibited, + requires, - and NOT prohibit.
func addClause(clauses []BooleanClause, conj conjunction, mod modifier, q Query) []BooleanClause {
	if conj == conjAnd && len(clauses) > 0 {
		last := &clauses[len(clauses)-1]
		if last.Occur != MustNot {
			last.Occur = Must
		}
	}

	occur := Should
	switch {
	case mod == modProhibited:
		occur = MustNot
	case mod == modRequired, conj == conjAnd:
		occur = Must
	}
	return append(clauses, BooleanClause{Occur: occur, Query: q})
}

func (p *parser) finish(clauses []BooleanClause) (Query, error) {
	if len(clauses) == 0 {
		return nil, p.errorAt(p.tok.pos, "empty query")
	}
	if len(clauses) == 1 && clauses[0].Occur == Should {
		return clauses[0].Query, nil
	}
	return &BooleanQuery{Clauses: clauses}, nil
}

func (p *parser) parseClause(field string) (Query, error) {
	if p.tok.kind == tokTerm || p.tok.kind == tokTo {
		name := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokColon {
			if name.wildcard && name.text != "*" {
				return nil, p.errorAt(name.pos, "invalid field name %q", name.text)
			}
			field = name.text
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			return p.boost(termClause(field, name))
		}
	}

	var q Query
	switch p.tok.kind {
	case tokTerm, tokTo:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		q = termClause(field, t)

	case tokPhrase:
		q = typedPhrase(field, p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseQuery(field, true)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil { // closing paren
			return nil, err
		}
		q = inner

	case tokRangeStart:
		r, err := p.parseRange(field)
		if err != nil {
			return nil, err
		}
		q = r

	default:
		return nil, p.unexpected()
	}

	return p.boost(q)
}

func (p *parser) boost(q Query) (Query, error) {
	if p.tok.kind != tokCaret {
		return q, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokTerm {
		return nil, p.errorAt(p.tok.pos, "expected boost value")
	}
	b, err := strconv.ParseFloat(p.tok.text, 64)
	if err != nil {
		return nil, p.errorAt(p.tok.pos, "invalid boost %q", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &BoostQuery{Query: q, Boost: b}, nil
}

func (p *parser) parseRange(field string) (Query, error) {
	inclLower := p.tok.inclusive
	if err := p.advance(); err != nil {
		return nil, err
	}

	lower, err := p.rangeBound()
	if err != nil {
		return nil, err
	}

	if p.tok.kind != tokTo {
		return nil, p.errorAt(p.tok.pos, "expected TO in range")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	upper, err := p.rangeBound()
	if err != nil {
		return nil, err
	}

	if p.tok.kind != tokRangeEnd {
		return nil, p.errorAt(p.tok.pos, "expected ']' or '}' to close range")
	}
	inclUpper := p.tok.inclusive
	if err := p.advance(); err != nil {
		return nil, err
	}

	return typedRange(field, lower, upper, inclLower, inclUpper), nil
}

// rangeBound reads one bound; an unquoted * is an open bound and yields nil.
func (p *parser) rangeBound() (*string, error) {
	switch p.tok.kind {
	case tokTerm, tokPhrase:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if t.kind == tokTerm && t.text == "*" {
			return nil, nil
		}
		s := t.text
		return &s, nil
	default:
		return nil, p.errorAt(p.tok.pos, "expected range bound, got %s", p.tok.kind)
	}
}

func termClause(field string, t token) Query {
	if t.wildcard {
		if field == "*" && t.text == "*" {
			return &MatchAllQuery{}
		}
		body := strings.TrimSuffix(t.text, "*")
		if strings.HasSuffix(t.text, "*") && !strings.ContainsAny(body, "*?") && body != "" {
			return &PrefixQuery{Field: field, Prefix: body}
		}
		return &WildcardQuery{Field: field, Pattern: t.text}
	}
	return typedTerm(field, t.text)
}

// typedTerm builds a single-value query, rewriting numeric and date fields to ranges.
func typedTerm(field, text string) Query {
	switch field {
	case domain.FieldRevisionNumber, domain.FieldCopyRevisionNumber:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &NumericRangeQuery{Field: field, Min: &n, Max: &n, IncludeMin: true, IncludeMax: true}
		}
	case domain.FieldDate:
		if start, end, err := dateBucket(text); err == nil {
			lo, hi := start.UnixMilli(), end.UnixMilli()
			return &NumericRangeQuery{Field: field, Min: &lo, Max: &hi, IncludeMin: true, IncludeMax: false}
		}
	}
	return &TermQuery{Field: field, Term: text}
}

func typedPhrase(field, text string) Query {
	if domain.TypeOf(field) == domain.FieldText {
		return &PhraseQuery{Field: field, Phrase: text}
	}
	return typedTerm(field, text)
}

// typedRange rewrites ranges on numeric and date fields. Any bound that does
// not parse keeps the whole range lexicographic.
func typedRange(field string, lower, upper *string, inclLower, inclUpper bool) Query {
	fallback := &TermRangeQuery{Field: field, Lower: lower, Upper: upper, IncludeLower: inclLower, IncludeUpper: inclUpper}

	var parse func(string) (int64, error)
	switch field {
	case domain.FieldRevisionNumber, domain.FieldCopyRevisionNumber:
		parse = func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
	case domain.FieldDate:
		parse = func(s string) (int64, error) {
			t, err := ParseDateBound(s)
			return t.UnixMilli(), err
		}
	default:
		return fallback
	}

	lo, err := parseBound(lower, parse)
	if err != nil {
		return fallback
	}
	hi, err := parseBound(upper, parse)
	if err != nil {
		return fallback
	}
	return &NumericRangeQuery{Field: field, Min: lo, Max: hi, IncludeMin: inclLower, IncludeMax: inclUpper}
}

func parseBound(s *string, parse func(string) (int64, error)) (*int64, error) {
	if s == nil {
		return nil, nil
	}
	n, err := parse(*s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
