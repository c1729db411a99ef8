package domain

import "strings"

// Facet dimension names.
const (
	FacetAuthor = "Author"
	FacetDate   = "Date"
)

// CategorySeparator joins the components of a category path in its string form.
const CategorySeparator = "/"

// CategoryPath is a hierarchical facet label, e.g. ["Date", "2024", "01", "15"].
type CategoryPath []string

// ParseCategoryPath splits a "/"-separated path. Empty components are dropped.
func ParseCategoryPath(s string) CategoryPath {
	var out CategoryPath
	for _, part := range strings.Split(s, CategorySeparator) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p CategoryPath) String() string {
	return strings.Join(p, CategorySeparator)
}

// IsRoot reports whether the path has no components.
func (p CategoryPath) IsRoot() bool {
	return len(p) == 0
}

// Parent returns the path without its last component.
func (p CategoryPath) Parent() CategoryPath {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Label returns the last component, or "" for the root.
func (p CategoryPath) Label() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Ancestors returns every proper prefix of p from the root down, root first.
func (p CategoryPath) Ancestors() []CategoryPath {
	out := make([]CategoryPath, 0, len(p))
	for i := 0; i < len(p); i++ {
		out = append(out, p[:i])
	}
	return out
}
