package sourcecontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sha1n/relic-history/internal/domain"
)

// MemorySource serves a fixed, in-process revision history.
// It is safe for concurrent use.
type MemorySource struct {
	mu      sync.RWMutex
	records []domain.RevisionRecord
	closed  bool
}

// NewMemorySource creates a source holding the given records.
func NewMemorySource(records ...domain.RevisionRecord) *MemorySource {
	s := &MemorySource{}
	for _, r := range records {
		s.Add(r)
	}
	return s
}

// LoadMemorySource reads a JSON array of revision records from path.
func LoadMemorySource(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Provider: string(ProviderMemory), Op: "load " + path, Err: err}
	}

	var records []domain.RevisionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &FetchError{Provider: string(ProviderMemory), Op: "decode " + path, Err: err}
	}

	for i := range records {
		for j := range records[i].ChangedPaths {
			cp := &records[i].ChangedPaths[j]
			if cp.CopyPath == "" && cp.CopyRevision == 0 {
				cp.CopyRevision = domain.NoCopyRevision
			}
		}
	}

	return NewMemorySource(records...), nil
}

// Add inserts a record, keeping the history ordered by revision.
func (s *MemorySource) Add(r domain.RevisionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r.Clone())
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].Revision < s.records[j].Revision
	})
}

// FetchRange implements RevisionSource.
func (s *MemorySource) FetchRange(ctx context.Context, begin, end int64) ([]domain.RevisionRecord, error) {
	if err := ValidateRange(begin, end); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Provider: string(ProviderMemory), Op: "fetch", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, &FetchError{Provider: string(ProviderMemory), Op: "fetch", Err: ErrSourceClosed}
	}

	out := make([]domain.RevisionRecord, 0)
	for _, r := range s.records {
		if inRange(r.Revision, begin, end) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Close implements RevisionSource.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemorySource) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("memory(%d revisions)", len(s.records))
}
