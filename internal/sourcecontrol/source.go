// Package sourcecontrol defines the contract for reading revision history from a
// version-control system and provides memory, git and subversion implementations.
package sourcecontrol

import (
	"context"
	"errors"
	"fmt"

	"github.com/sha1n/relic-history/internal/domain"
)

// LatestRevision as the end of a range means "up to the newest revision".
const LatestRevision int64 = -1

var (
	// ErrInvalidRange is returned when begin is after end.
	ErrInvalidRange = errors.New("invalid revision range")

	// ErrSourceClosed is returned by sources that were already closed.
	ErrSourceClosed = errors.New("revision source is closed")
)

//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks RevisionSource

// RevisionSource reads revision history from a repository.
//
// Each instance owns its connection state. Instances are not required to be
// safe for concurrent use unless documented otherwise.
type RevisionSource interface {
	// FetchRange returns revisions in [begin, end] in ascending revision order.
	// end may be LatestRevision. An empty history yields an empty, non-nil slice.
	FetchRange(ctx context.Context, begin, end int64) ([]domain.RevisionRecord, error)

	// Close releases the connection held by the source.
	Close() error
}

// FetchError wraps a failure while talking to the backing repository.
type FetchError struct {
	Provider string
	Op       string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is classifies every FetchError as domain.ErrSourceFetch.
func (e *FetchError) Is(target error) bool {
	return target == domain.ErrSourceFetch
}

// ValidateRange checks that begin and end describe a valid request.
func ValidateRange(begin, end int64) error {
	if begin < 0 {
		return fmt.Errorf("%w: begin %d is negative", ErrInvalidRange, begin)
	}
	if end != LatestRevision && begin > end {
		return fmt.Errorf("%w: begin %d is after end %d", ErrInvalidRange, begin, end)
	}
	return nil
}

// inRange reports whether rev falls in [begin, end].
func inRange(rev, begin, end int64) bool {
	return rev >= begin && (end == LatestRevision || rev <= end)
}

// FetchRevision returns revision n and whether the source has it.
func FetchRevision(ctx context.Context, src RevisionSource, n int64) (domain.RevisionRecord, bool, error) {
	if n < 0 {
		return domain.RevisionRecord{}, false, fmt.Errorf("%w: revision %d is negative", ErrInvalidRange, n)
	}
	records, err := src.FetchRange(ctx, n, n)
	if err != nil {
		return domain.RevisionRecord{}, false, err
	}
	for _, rec := range records {
		if rec.Revision == n {
			return rec, true, nil
		}
	}
	return domain.RevisionRecord{}, false, nil
}
