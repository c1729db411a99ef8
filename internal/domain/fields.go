package domain

// Index field names. These are stable and user-visible in query strings.
const (
	FieldRevisionNumber     = "RevisionNumber"
	FieldRevision           = "Revision"
	FieldAuthor             = "Author"
	FieldDate               = "Date"
	FieldMessage            = "Message"
	FieldPath               = "Path"
	FieldChange             = "Change"
	FieldCopyPath           = "CopyPath"
	FieldCopyRevisionNumber = "CopyRevisionNumber"
	FieldCopyRevision       = "CopyRevision"
)

// DefaultQueryField is the field unqualified query terms apply to.
const DefaultQueryField = FieldMessage

// FieldType describes how a field value is indexed.
type FieldType int

const (
	// FieldKeyword is indexed as a single exact token.
	FieldKeyword FieldType = iota
	// FieldText is tokenized by the standard analyzer.
	FieldText
	// FieldNumeric is indexed numerically and supports range queries.
	FieldNumeric
)

func (t FieldType) String() string {
	switch t {
	case FieldKeyword:
		return "keyword"
	case FieldText:
		return "text"
	case FieldNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// IndexedField is one (name, value) pair produced for a document.
// Value is a string for keyword and text fields and an int64 for numeric fields.
type IndexedField struct {
	Name   string
	Value  any
	Type   FieldType
	Stored bool
}

// StoredFields lists every field the document mapper writes, in mapping order.
var StoredFields = []string{
	FieldRevisionNumber,
	FieldRevision,
	FieldAuthor,
	FieldDate,
	FieldMessage,
	FieldPath,
	FieldChange,
	FieldCopyPath,
	FieldCopyRevisionNumber,
	FieldCopyRevision,
}

// FieldTypes maps each known field to its type.
var FieldTypes = map[string]FieldType{
	FieldRevisionNumber:     FieldNumeric,
	FieldRevision:           FieldKeyword,
	FieldAuthor:             FieldKeyword,
	FieldDate:               FieldNumeric,
	FieldMessage:            FieldText,
	FieldPath:               FieldKeyword,
	FieldChange:             FieldKeyword,
	FieldCopyPath:           FieldKeyword,
	FieldCopyRevisionNumber: FieldNumeric,
	FieldCopyRevision:       FieldKeyword,
}

// TypeOf returns the type of a known field. Unknown fields are treated as text.
func TypeOf(field string) FieldType {
	if t, ok := FieldTypes[field]; ok {
		return t
	}
	return FieldText
}
