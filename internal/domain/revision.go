package domain

import "time"

// NoCopyRevision marks a ChangedPath that was not copied from another location.
const NoCopyRevision int64 = -1

// RevisionRecord is one unit of version-control history as reported by a RevisionSource.
// Records are values: sources hand out fresh copies and consumers never mutate them.
type RevisionRecord struct {
	// Revision is the revision number. Sources report non-negative numbers.
	Revision int64 `json:"revision"`

	// Author is empty when the source did not report one.
	Author string `json:"author,omitempty"`

	// Date is the zero time when the source did not report one.
	Date time.Time `json:"date,omitempty"`

	Message string `json:"message"`

	// ChangedPaths is in source order.
	ChangedPaths []ChangedPath `json:"changed_paths,omitempty"`
}

// HasAuthor reports whether the record carries an author.
func (r RevisionRecord) HasAuthor() bool {
	return r.Author != ""
}

// HasDate reports whether the record carries a commit date.
func (r RevisionRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// ChangedPath is one path touched by a revision.
type ChangedPath struct {
	Path string `json:"path"`

	// ChangeType is the single-letter change code reported by the source (A, M, D, R...).
	ChangeType string `json:"change_type"`

	// CopyPath is the copy source, empty when the path was not copied.
	CopyPath string `json:"copy_path,omitempty"`

	// CopyRevision is NoCopyRevision when the path was not copied.
	CopyRevision int64 `json:"copy_revision"`
}

// NewChangedPath returns a ChangedPath without copy information.
func NewChangedPath(path, changeType string) ChangedPath {
	return ChangedPath{Path: path, ChangeType: changeType, CopyRevision: NoCopyRevision}
}

// NewCopiedPath returns a ChangedPath that was copied from copyPath at copyRevision.
func NewCopiedPath(path, changeType, copyPath string, copyRevision int64) ChangedPath {
	return ChangedPath{Path: path, ChangeType: changeType, CopyPath: copyPath, CopyRevision: copyRevision}
}

// IsCopy reports whether a copy-source path is present.
func (c ChangedPath) IsCopy() bool {
	return c.CopyPath != ""
}

// HasCopyRevision reports whether the copy-source revision is known.
func (c ChangedPath) HasCopyRevision() bool {
	return c.IsCopy() && c.CopyRevision != NoCopyRevision
}

// Clone returns a deep copy of the record.
func (r RevisionRecord) Clone() RevisionRecord {
	out := r
	if r.ChangedPaths != nil {
		out.ChangedPaths = make([]ChangedPath, len(r.ChangedPaths))
		copy(out.ChangedPaths, r.ChangedPaths)
	}
	return out
}
