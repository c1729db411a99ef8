package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/relic-history/internal/domain"
)

// Compile parses s and converts it to a bleve query.
func (c *QueryCompiler) Compile(s string) (query.Query, error) {
	q, err := c.Parse(s)
	if err != nil {
		return nil, err
	}
	return ToBleve(q)
}

// ToBleve converts a parsed query into its bleve equivalent.
// Keyword fields match exact terms; text fields are analyzed.
func ToBleve(q Query) (query.Query, error) {
	switch n := q.(type) {
	case *BooleanQuery:
		return booleanToBleve(n)

	case *TermQuery:
		if domain.TypeOf(n.Field) == domain.FieldText {
			mq := bleve.NewMatchQuery(n.Term)
			mq.SetField(n.Field)
			return mq, nil
		}
		tq := bleve.NewTermQuery(n.Term)
		tq.SetField(n.Field)
		return tq, nil

	case *PhraseQuery:
		pq := bleve.NewMatchPhraseQuery(n.Phrase)
		pq.SetField(n.Field)
		return pq, nil

	case *WildcardQuery:
		wq := bleve.NewWildcardQuery(normalizePattern(n.Field, n.Pattern))
		wq.SetField(n.Field)
		return wq, nil

	case *PrefixQuery:
		pq := bleve.NewPrefixQuery(normalizePattern(n.Field, n.Prefix))
		pq.SetField(n.Field)
		return pq, nil

	case *TermRangeQuery:
		lower, upper := "", ""
		if n.Lower != nil {
			lower = normalizePattern(n.Field, *n.Lower)
		}
		if n.Upper != nil {
			upper = normalizePattern(n.Field, *n.Upper)
		}
		inclLower, inclUpper := n.IncludeLower, n.IncludeUpper
		rq := bleve.NewTermRangeInclusiveQuery(lower, upper, &inclLower, &inclUpper)
		rq.SetField(n.Field)
		return rq, nil

	case *NumericRangeQuery:
		var lo, hi *float64
		if n.Min != nil {
			v := float64(*n.Min)
			lo = &v
		}
		if n.Max != nil {
			v := float64(*n.Max)
			hi = &v
		}
		inclMin, inclMax := n.IncludeMin, n.IncludeMax
		rq := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclMin, &inclMax)
		rq.SetField(n.Field)
		return rq, nil

	case *MatchAllQuery:
		return bleve.NewMatchAllQuery(), nil

	case *BoostQuery:
		inner, err := ToBleve(n.Query)
		if err != nil {
			return nil, err
		}
		if bq, ok := inner.(query.BoostableQuery); ok {
			bq.SetBoost(n.Boost)
		}
		return inner, nil

	default:
		return nil, fmt.Errorf("%w: unsupported query node %T", domain.ErrQueryParse, q)
	}
}

func booleanToBleve(n *BooleanQuery) (query.Query, error) {
	bq := bleve.NewBooleanQuery()
	var must, should, mustNot int

	for _, c := range n.Clauses {
		inner, err := ToBleve(c.Query)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case Must:
			bq.AddMust(inner)
			must++
		case MustNot:
			bq.AddMustNot(inner)
			mustNot++
		default:
			bq.AddShould(inner)
			should++
		}
	}

	// A purely negative query excludes from everything
	if must == 0 && should == 0 && mustNot > 0 {
		bq.AddMust(bleve.NewMatchAllQuery())
	}
	if must == 0 && should > 0 {
		bq.SetMinShould(1)
	}
	return bq, nil
}

// normalizePattern lowercases patterns on analyzed fields to match indexed tokens.
func normalizePattern(field, s string) string {
	if domain.TypeOf(field) == domain.FieldText {
		return strings.ToLower(s)
	}
	return s
}
