package history

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the manifest file name under the base directory
	ManifestFilename = "manifest.json"
)

// Manifest stores the sync state of every indexed repository.
type Manifest struct {
	Version  int                  `json:"version"`
	LastSync time.Time            `json:"last_sync"`
	Repos    map[string]RepoState `json:"repos"`
	mu       sync.RWMutex
}

// RepoState stores the sync state of one repository.
type RepoState struct {
	Location     string    `json:"location"`
	Provider     string    `json:"provider"`
	Indexed      bool      `json:"indexed"`
	LastRevision int64     `json:"last_revision"`
	Documents    uint64    `json:"documents"`
	TaxonomySize int       `json:"taxonomy_size"`
	CreatedAt    time.Time `json:"created_at"`
	LastSync     time.Time `json:"last_sync"`
	Error        string    `json:"error,omitempty"`
}

// NextRevision returns the first revision a sync has to fetch.
func (s RepoState) NextRevision() int64 {
	if !s.Indexed {
		return 0
	}
	return s.LastRevision + 1
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Repos:   make(map[string]RepoState),
	}
}

// LoadManifest reads a manifest from disk, or returns an empty one if the file doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("%w: read manifest: %w", domain.ErrStorage, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: parse manifest %s: %w", domain.ErrStorage, path, err)
	}
	if manifest.Version > ManifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d is newer than %d", domain.ErrStorage, manifest.Version, ManifestVersion)
	}
	if manifest.Repos == nil {
		manifest.Repos = make(map[string]RepoState)
	}
	return &manifest, nil
}

// Save writes the manifest atomically through a temporary file.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: marshal manifest: %w", domain.ErrStorage, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create manifest directory: %w", domain.ErrStorage, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: write manifest: %w", domain.ErrStorage, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: rename manifest: %w", domain.ErrStorage, err)
	}
	return nil
}

// RepoState returns the state of a repository and whether it is known.
func (m *Manifest) RepoState(repoID string) (RepoState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.Repos[repoID]
	return state, ok
}

// SetRepoState replaces the state of a repository.
func (m *Manifest) SetRepoState(repoID string, state RepoState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Repos[repoID] = state
}

// RemoveRepo forgets a repository.
func (m *Manifest) RemoveRepo(repoID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Repos, repoID)
}

// RepoIDs returns the known repository ids in sorted order.
func (m *Manifest) RepoIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.Repos))
}

// RecordSync stores the outcome of a successful sync and clears any error.
func (m *Manifest) RecordSync(repoID string, lastRevision int64, result IndexResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	state := m.Repos[repoID]
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.Indexed = true
	state.LastRevision = lastRevision
	state.Documents = result.IndexDocuments
	state.TaxonomySize = result.TaxonomySize
	state.LastSync = now
	state.Error = ""
	m.Repos[repoID] = state
	m.LastSync = now
}

// UpdateLastSync records a sync that found nothing new.
func (m *Manifest) UpdateLastSync(repoID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	state := m.Repos[repoID]
	state.LastSync = now
	state.Error = ""
	m.Repos[repoID] = state
	m.LastSync = now
}

// NeedsSyncCheck returns true if at least interval has passed since the last sync.
func (m *Manifest) NeedsSyncCheck(interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LastSync.IsZero() {
		return true
	}
	return time.Since(m.LastSync) >= interval
}

// ReposWithErrors returns the last error of every failing repository.
func (m *Manifest) ReposWithErrors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string)
	for repoID, state := range m.Repos {
		if state.Error != "" {
			result[repoID] = state.Error
		}
	}
	return result
}

// SetRepoError records the error of the last sync of a repository.
func (m *Manifest) SetRepoError(repoID string, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.Repos[repoID]
	state.Error = err
	m.Repos[repoID] = state
}
