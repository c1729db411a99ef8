// Package search compiles query strings, runs searches with hit and facet
// collection against an index and its taxonomy, and aggregates the results.
package search

import (
	"strconv"
	"strings"
)

// Query is a node of a compiled query. String renders it back to query syntax.
type Query interface {
	String() string
}

// Occur tells how a boolean clause participates in matching.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// BooleanClause is one clause of a BooleanQuery.
type BooleanClause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses.
type BooleanQuery struct {
	Clauses []BooleanClause
}

func (q *BooleanQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		inner := c.Query.String()
		if _, nested := c.Query.(*BooleanQuery); nested {
			inner = "(" + inner + ")"
		}
		parts[i] = c.Occur.prefix() + inner
	}
	return strings.Join(parts, " ")
}

// TermQuery matches a single term in a field.
type TermQuery struct {
	Field string
	Term  string
}

func (q *TermQuery) String() string {
	return q.Field + ":" + q.Term
}

// PhraseQuery matches a quoted phrase.
type PhraseQuery struct {
	Field  string
	Phrase string
}

func (q *PhraseQuery) String() string {
	return q.Field + ":" + strconv.Quote(q.Phrase)
}

// WildcardQuery matches terms against a pattern with * and ?.
type WildcardQuery struct {
	Field   string
	Pattern string
}

func (q *WildcardQuery) String() string {
	return q.Field + ":" + q.Pattern
}

// PrefixQuery matches terms starting with Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

func (q *PrefixQuery) String() string {
	return q.Field + ":" + q.Prefix + "*"
}

// TermRangeQuery matches terms in lexicographic order. A nil bound is open.
type TermRangeQuery struct {
	Field        string
	Lower        *string
	Upper        *string
	IncludeLower bool
	IncludeUpper bool
}

func (q *TermRangeQuery) String() string {
	return rangeString(q.Field, strBound(q.Lower), strBound(q.Upper), q.IncludeLower, q.IncludeUpper)
}

// NumericRangeQuery matches numeric values. A nil bound is open.
type NumericRangeQuery struct {
	Field      string
	Min        *int64
	Max        *int64
	IncludeMin bool
	IncludeMax bool
}

func (q *NumericRangeQuery) String() string {
	return rangeString(q.Field, intBound(q.Min), intBound(q.Max), q.IncludeMin, q.IncludeMax)
}

// MatchAllQuery matches every document.
type MatchAllQuery struct{}

func (q *MatchAllQuery) String() string {
	return "*:*"
}

// BoostQuery scales the score of Query.
type BoostQuery struct {
	Query Query
	Boost float64
}

func (q *BoostQuery) String() string {
	return q.Query.String() + "^" + strconv.FormatFloat(q.Boost, 'f', -1, 64)
}

func rangeString(field, lower, upper string, inclLower, inclUpper bool) string {
	left, right := "{", "}"
	if inclLower {
		left = "["
	}
	if inclUpper {
		right = "]"
	}
	return field + ":" + left + lower + " TO " + upper + right
}

func strBound(s *string) string {
	if s == nil {
		return "*"
	}
	return *s
}

func intBound(n *int64) string {
	if n == nil {
		return "*"
	}
	return strconv.FormatInt(*n, 10)
}
