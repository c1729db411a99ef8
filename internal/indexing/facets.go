package indexing

import (
	"fmt"

	"github.com/sha1n/relic-history/internal/domain"
)

// BuildFacets derives the facet categories of a revision.
//
// A revision with an author yields Author/<name>; one with a date yields
// Date/<yyyy>/<MM>/<dd>/<HH> in UTC. Absent values yield nothing.
func BuildFacets(rec domain.RevisionRecord) []domain.CategoryPath {
	var out []domain.CategoryPath

	if rec.HasAuthor() {
		out = append(out, domain.CategoryPath{domain.FacetAuthor, rec.Author})
	}

	if rec.HasDate() {
		d := rec.Date.UTC()
		out = append(out, domain.CategoryPath{
			domain.FacetDate,
			fmt.Sprintf("%04d", d.Year()),
			fmt.Sprintf("%02d", int(d.Month())),
			fmt.Sprintf("%02d", d.Day()),
			fmt.Sprintf("%02d", d.Hour()),
		})
	}

	return out
}
