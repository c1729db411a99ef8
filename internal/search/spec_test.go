package search

import (
	"errors"
	"testing"

	"github.com/sha1n/relic-history/internal/domain"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		input    string
		expected Sort
		wantErr  bool
	}{
		{"", DefaultSort, false},
		{"-RevisionNumber", Sort{Field: "RevisionNumber", Descending: true}, false},
		{"Date", Sort{Field: "Date"}, false},
		{"_score", RelevanceSort, false},
		{"-_score", RelevanceSort, false},
		{"Nope", Sort{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSort(tt.input)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrConfiguration) {
					t.Errorf("Expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestSort_String(t *testing.T) {
	if DefaultSort.String() != "-RevisionNumber" {
		t.Errorf("Expected -RevisionNumber, got %s", DefaultSort.String())
	}
	if RelevanceSort.String() != "-_score" {
		t.Errorf("Expected -_score, got %s", RelevanceSort.String())
	}
}

func TestNewSearchSpec_Defaults(t *testing.T) {
	spec, err := NewSearchSpecFromString("test:foo")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Query().String() != "test:foo" {
		t.Errorf("Expected test:foo, got %s", spec.Query().String())
	}
	if spec.Sort() != DefaultSort {
		t.Errorf("Expected default sort, got %+v", spec.Sort())
	}
	if spec.HasFacets() {
		t.Error("Expected no facets")
	}
}

func TestNewSearchSpec_Errors(t *testing.T) {
	if _, err := NewSearchSpec(nil); !errors.Is(err, domain.ErrQueryParse) {
		t.Errorf("Expected ErrQueryParse for nil query, got %v", err)
	}
	if _, err := NewSearchSpecFromString("foo:"); !errors.Is(err, domain.ErrQueryParse) {
		t.Errorf("Expected ErrQueryParse, got %v", err)
	}
}

func TestSearchSpec_Facets(t *testing.T) {
	spec, err := NewSearchSpec(&MatchAllQuery{},
		WithFacetMap(map[string]int{"Date/2007": 5, "Author": 3}),
		WithFacets(NewFacetRequest("/", 3)),
	)
	if err != nil {
		t.Fatal(err)
	}

	facets := spec.Facets()
	if len(facets) != 2 {
		t.Fatalf("Expected 2 facets, got %v", facets)
	}
	if facets[0].Name() != "Author" || facets[1].Name() != "Date/2007" {
		t.Errorf("Expected Author then Date/2007, got %s then %s", facets[0].Name(), facets[1].Name())
	}
	if facets[1].MaxResults != 5 {
		t.Errorf("Expected max 5, got %d", facets[1].MaxResults)
	}

	spec.AddFacetPath("Author", 0)
	facets = spec.Facets()
	if len(facets) != 2 || facets[0].MaxResults != DefaultFacetResults {
		t.Errorf("Expected Author to be replaced with default max, got %v", facets)
	}
}

func TestSearchSpec_HitCollectorIsCreatedOnce(t *testing.T) {
	spec, _ := NewSearchSpec(&MatchAllQuery{})

	first := spec.HitCollectorWithLimit(5)
	second := spec.HitCollectorWithLimit(50)
	if first != second {
		t.Error("Expected the same collector")
	}
	if second.Limit() != 5 {
		t.Errorf("Expected limit 5, got %d", second.Limit())
	}
	if spec.HitCollector() != first {
		t.Error("Expected HitCollector to return the existing collector")
	}
}

func TestSearchSpec_FacetsCollector(t *testing.T) {
	plain, _ := NewSearchSpec(&MatchAllQuery{})
	if plain.FacetsCollector(nil) != nil {
		t.Error("Expected nil facets collector without facet requests")
	}

	faceted, _ := NewSearchSpec(&MatchAllQuery{}, WithFacetMap(map[string]int{"Author": 10}))
	c := faceted.FacetsCollector(nil)
	if c == nil {
		t.Fatal("Expected a facets collector")
	}
	if faceted.FacetsCollector(nil) != c {
		t.Error("Expected the same facets collector")
	}
}
