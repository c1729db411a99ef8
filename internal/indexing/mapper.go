package indexing

import (
	"strconv"

	"github.com/sha1n/relic-history/internal/domain"
)

// MapRevision converts a revision record into the fields of its document.
//
// Author is always present and empty when the record has none, so facet and
// term queries see a consistent value. Date is omitted when absent. Each
// changed path contributes Path
// and Change, plus CopyPath when the path was copied and CopyRevisionNumber and
// CopyRevision when the copy source revision is known. Field order follows the record.
func MapRevision(rec domain.RevisionRecord) []domain.IndexedField {
	fields := make([]domain.IndexedField, 0, 5+5*len(rec.ChangedPaths))

	fields = append(fields,
		numeric(domain.FieldRevisionNumber, rec.Revision),
		keywordField(domain.FieldRevision, strconv.FormatInt(rec.Revision, 10)),
		keywordField(domain.FieldAuthor, rec.Author),
	)

	if rec.HasDate() {
		fields = append(fields, numeric(domain.FieldDate, rec.Date.UnixMilli()))
	}

	fields = append(fields, domain.IndexedField{
		Name:   domain.FieldMessage,
		Value:  rec.Message,
		Type:   domain.FieldText,
		Stored: true,
	})

	for _, cp := range rec.ChangedPaths {
		fields = append(fields,
			keywordField(domain.FieldPath, cp.Path),
			keywordField(domain.FieldChange, cp.ChangeType),
		)
		if cp.IsCopy() {
			fields = append(fields, keywordField(domain.FieldCopyPath, cp.CopyPath))
		}
		if cp.HasCopyRevision() {
			fields = append(fields,
				numeric(domain.FieldCopyRevisionNumber, cp.CopyRevision),
				keywordField(domain.FieldCopyRevision, strconv.FormatInt(cp.CopyRevision, 10)),
			)
		}
	}

	return fields
}

func keywordField(name, value string) domain.IndexedField {
	return domain.IndexedField{Name: name, Value: value, Type: domain.FieldKeyword, Stored: true}
}

func numeric(name string, value int64) domain.IndexedField {
	return domain.IndexedField{Name: name, Value: value, Type: domain.FieldNumeric, Stored: true}
}

// NewDocument assembles the bleve document for fields and facet categories.
// Repeated field names become multi-valued fields. Numeric values are stored as float64.
func NewDocument(fields []domain.IndexedField, categories []domain.CategoryPath) map[string]interface{} {
	doc := make(map[string]interface{}, len(fields)+1)
	multi := make(map[string][]interface{})

	for _, f := range fields {
		v := f.Value
		if f.Type == domain.FieldNumeric {
			v = toFloat(v)
		}
		multi[f.Name] = append(multi[f.Name], v)
	}

	for name, values := range multi {
		if len(values) == 1 {
			doc[name] = values[0]
		} else {
			doc[name] = values
		}
	}

	if len(categories) > 0 {
		doc[FacetFieldPrefix] = facetEdges(categories)
	}

	return doc
}

// facetEdges maps every proper prefix of each category to the labels below it.
func facetEdges(categories []domain.CategoryPath) map[string]interface{} {
	edges := make(map[string][]string)
	for _, c := range categories {
		for i := 1; i < len(c); i++ {
			key := c[:i].String()
			label := c[i]
			if !containsString(edges[key], label) {
				edges[key] = append(edges[key], label)
			}
		}
	}

	out := make(map[string]interface{}, len(edges))
	for k, labels := range edges {
		out[k] = labels
	}
	return out
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
