package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sha1n/relic-history/internal/config"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
	"github.com/sha1n/relic-history/internal/metrics"
	"github.com/sha1n/relic-history/internal/search"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
)

// LockFilename is the name of the sync leader lock under the base directory.
const LockFilename = "sync.lock"

// ErrNotReady is returned when searching before any revision was indexed.
var ErrNotReady = errors.New("index not ready")

// Service keeps the index of one repository in sync with its source and
// searches it.
//
// Syncs are coordinated across processes by a leader lock: one process
// indexes while the others wait for it and then find nothing left to do.
// Each search opens its own read-only searcher, so searches never hold the
// index open while a sync writes to it.
type Service struct {
	settings    *config.Settings
	source      sourcecontrol.RevisionSource
	metrics     *metrics.Metrics
	repoID      string
	indexDir    string
	taxonomyDir string
	mode        indexing.OpenMode
	lock        *indexing.FileLock

	// syncMu serializes syncs of this process; lock those of other processes.
	syncMu sync.Mutex

	mu       sync.RWMutex
	manifest *Manifest
	ready    bool

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a service for the repository configured in settings.
// The service owns source and closes it on Close. m may be nil.
func NewService(settings *config.Settings, source sourcecontrol.RevisionSource, m *metrics.Metrics) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings cannot be nil", domain.ErrConfiguration)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: revision source cannot be nil", domain.ErrConfiguration)
	}

	mode, err := indexing.ParseOpenMode(settings.Index.OpenMode)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(settings.Index.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create base directory: %w", domain.ErrStorage, err)
	}

	manifest, err := LoadManifest(manifestPath(settings))
	if err != nil {
		return nil, err
	}

	repoID := sourcecontrol.RepositoryID(settings.Source.Location)
	indexDir, taxonomyDir := settings.Index.Locations(repoID)

	s := &Service{
		settings:    settings,
		source:      source,
		metrics:     m,
		repoID:      repoID,
		indexDir:    indexDir,
		taxonomyDir: taxonomyDir,
		mode:        mode,
		lock:        indexing.NewFileLock(filepath.Join(settings.Index.BaseDir, LockFilename)),
		manifest:    manifest,
		stop:        make(chan struct{}),
	}
	s.ready = s.indexExists()
	return s, nil
}

func manifestPath(settings *config.Settings) string {
	return filepath.Join(settings.Index.BaseDir, ManifestFilename)
}

// Initialize syncs on start when configured to. A sync failure is logged and
// the existing index, if any, stays searchable.
func (s *Service) Initialize(ctx context.Context) error {
	if s.settings.Sync.OnStart {
		if _, err := s.Sync(ctx); err != nil {
			if errors.Is(err, indexing.ErrLockTimeout) {
				slog.Warn("Timeout waiting for sync, using existing index", "error", err)
			} else {
				slog.Error("Sync failed", "repo_id", s.repoID, "error", err)
			}
		}
	}

	if s.IsReady() {
		slog.Info("Index ready", "repo_id", s.repoID, "index", s.indexDir)
	} else {
		slog.Warn("No index available", "repo_id", s.repoID)
	}
	return nil
}

// Sync appends the revisions added to the source since the last sync.
// It waits up to the configured lock timeout for a sync by another process.
func (s *Service) Sync(ctx context.Context) (IndexResult, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.lock.LockWithContext(ctx, s.settings.Sync.LockTimeout); err != nil {
		return IndexResult{}, err
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	}()

	return s.syncLocked(ctx)
}

// TrySync syncs unless another process is already syncing.
func (s *Service) TrySync(ctx context.Context) (IndexResult, bool, error) {
	if !s.syncMu.TryLock() {
		return IndexResult{}, false, nil
	}
	defer s.syncMu.Unlock()

	acquired, err := s.lock.TryLock()
	if err != nil {
		return IndexResult{}, false, fmt.Errorf("%w: acquire sync lock: %w", domain.ErrStorage, err)
	}
	if !acquired {
		return IndexResult{}, false, nil
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	}()

	result, err := s.syncLocked(ctx)
	return result, true, err
}

// IndexRange indexes the revisions in [begin, end] once, under the same
// leader lock as Sync. end may be sourcecontrol.LatestRevision. The recorded
// last revision only moves forward, so a later Sync resumes after the newest
// revision indexed by any run.
func (s *Service) IndexRange(ctx context.Context, begin, end int64) (IndexResult, error) {
	if begin < 0 || (end != sourcecontrol.LatestRevision && end < begin) {
		return IndexResult{}, fmt.Errorf("%w: invalid revision range %d:%d", domain.ErrConfiguration, begin, end)
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.lock.LockWithContext(ctx, s.settings.Sync.LockTimeout); err != nil {
		return IndexResult{}, err
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	}()

	manifest, state, err := s.reloadState()
	if err != nil {
		return IndexResult{}, err
	}

	mode := s.mode
	if !state.Indexed && mode == indexing.ModeCreateOrAppend {
		mode = indexing.ModeCreate
	}
	return s.run(ctx, manifest, state, begin, end, mode)
}

// syncLocked runs a sync while holding the leader lock.
func (s *Service) syncLocked(ctx context.Context) (IndexResult, error) {
	manifest, state, err := s.reloadState()
	if err != nil {
		return IndexResult{}, err
	}

	begin, mode := state.NextRevision(), s.mode
	switch {
	case mode == indexing.ModeCreate:
		begin = 0
	case !state.Indexed && mode == indexing.ModeCreateOrAppend:
		mode = indexing.ModeCreate
	}
	return s.run(ctx, manifest, state, begin, sourcecontrol.LatestRevision, mode)
}

// reloadState reads the manifest from disk, since another process may have
// synced since this one last looked.
func (s *Service) reloadState() (*Manifest, RepoState, error) {
	manifest, err := LoadManifest(manifestPath(s.settings))
	if err != nil {
		return nil, RepoState{}, err
	}
	s.mu.Lock()
	s.manifest = manifest
	s.mu.Unlock()

	state, known := manifest.RepoState(s.repoID)
	if !known {
		state = RepoState{
			Location: s.settings.Source.Location,
			Provider: s.settings.Source.Provider,
		}
		manifest.SetRepoState(s.repoID, state)
	}
	return manifest, state, nil
}

// run fetches [begin, end] and writes it to the index. The source is read
// without s.mu so searches keep running; only the index write excludes them.
func (s *Service) run(ctx context.Context, manifest *Manifest, state RepoState, begin, end int64, mode indexing.OpenMode) (IndexResult, error) {
	fetched, err := s.fetch(ctx, begin, end)
	if err != nil {
		return IndexResult{}, s.recordFailure(manifest, err)
	}

	last, ok := fetched.Last()
	if !ok {
		slog.Info("Repository already up to date", "repo_id", s.repoID, "last_revision", state.LastRevision)
		manifest.UpdateLastSync(s.repoID)
		s.saveManifest(manifest)
		return IndexResult{IndexDocuments: state.Documents, TaxonomySize: state.TaxonomySize}, nil
	}

	s.mu.Lock()
	result, err := s.index(fetched, mode)
	if err == nil {
		s.ready = true
	}
	s.mu.Unlock()
	if err != nil {
		return IndexResult{}, s.recordFailure(manifest, err)
	}

	lastRevision := last.Revision
	if mode != indexing.ModeCreate && state.Indexed && state.LastRevision > lastRevision {
		lastRevision = state.LastRevision
	}
	manifest.RecordSync(s.repoID, lastRevision, result)
	s.saveManifest(manifest)
	s.metrics.RecordIndexed(result.Added, result.IndexDocuments, result.TaxonomySize)

	slog.Info("Sync complete",
		"repo_id", s.repoID,
		"revisions", result.Added,
		"last_revision", lastRevision,
		"documents", result.IndexDocuments,
		"taxonomy_size", result.TaxonomySize,
	)
	return result, nil
}

func (s *Service) recordFailure(manifest *Manifest, err error) error {
	manifest.SetRepoError(s.repoID, err.Error())
	s.saveManifest(manifest)

	s.mu.Lock()
	s.ready = s.indexExists()
	s.mu.Unlock()
	return err
}

func (s *Service) fetch(ctx context.Context, begin, end int64) (*FetchResult, error) {
	if timeout := s.settings.Source.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	slog.Info("Fetching revisions", "repo_id", s.repoID, "from", begin, "to", end)
	fetched, err := FetchRevisions(ctx, s.source, begin, end)
	if err != nil {
		s.metrics.RecordFetchError()
		return nil, err
	}
	return fetched, nil
}

// index writes fetched to the index. Callers hold s.mu.
func (s *Service) index(fetched *FetchResult, mode indexing.OpenMode) (IndexResult, error) {
	session, err := indexing.NewIndexWriterSession(s.indexDir, s.taxonomyDir, mode)
	if err != nil {
		return IndexResult{}, &ActionError{Action: ActionIndex, Err: err}
	}
	ix := indexing.NewIndexer(session)

	result, err := IndexRevisions(ix, fetched.All())
	if closeErr := ix.Close(); err == nil && closeErr != nil {
		err = &ActionError{Action: ActionIndex, Err: closeErr}
	}
	if err != nil {
		return IndexResult{}, err
	}
	return result, nil
}

func (s *Service) saveManifest(manifest *Manifest) {
	if err := manifest.Save(manifestPath(s.settings)); err != nil {
		slog.Error("Failed to save manifest", "error", err)
	}
}

func (s *Service) indexExists() bool {
	_, err := os.Stat(filepath.Join(s.indexDir, "index_meta.json"))
	return err == nil
}

// Start syncs periodically in the background until ctx is done or the
// service is closed. It does nothing when the sync interval is not positive.
func (s *Service) Start(ctx context.Context) {
	interval := s.settings.Sync.Interval
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				_, synced, err := s.TrySync(ctx)
				if err != nil {
					slog.Error("Periodic sync failed", "repo_id", s.repoID, "error", err)
				} else if !synced {
					slog.Debug("Another instance is syncing, skipping", "repo_id", s.repoID)
				}
			}
		}
	}()
}

// Search runs opts against the index. Empty sort and limit fall back to the
// configured search defaults.
func (s *Service) Search(opts SearchOptions) (*search.Result, error) {
	if opts.Sort == "" {
		opts.Sort = s.settings.Search.Sort
	}
	if opts.Limit <= 0 {
		opts.Limit = s.settings.Search.MaxResults
	}

	start := time.Now()
	result, err := s.withSearcher(func(searcher *search.Searcher) (*search.Result, error) {
		return RunSearch(searcher, opts)
	})
	s.metrics.RecordSearch(searchOutcome(err), time.Since(start))
	return result, err
}

// Revision returns the indexed document of revision n.
func (s *Service) Revision(n int64) (search.Hit, bool, error) {
	var (
		hit   search.Hit
		found bool
	)
	_, err := s.withSearcher(func(searcher *search.Searcher) (*search.Result, error) {
		var err error
		hit, found, err = searcher.Revision(n)
		return nil, err
	})
	return hit, found, err
}

func (s *Service) withSearcher(fn func(*search.Searcher) (*search.Result, error)) (result *search.Result, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, ErrNotReady
	}

	searcher, err := search.NewSearcher(s.indexDir, s.taxonomyDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := searcher.Dispose(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := searcher.Open(); err != nil {
		return nil, err
	}
	return fn(searcher)
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrQueryParse):
		return metrics.OutcomeParseError
	default:
		return metrics.OutcomeError
	}
}

// RepoID returns the id of the synced repository.
func (s *Service) RepoID() string {
	return s.repoID
}

// State returns the sync state of the repository.
func (s *Service) State() RepoState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, _ := s.manifest.RepoState(s.repoID)
	return state
}

// IsReady returns true if the index can be searched.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Close stops periodic syncing and closes the revision source.
func (s *Service) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false

	if err := s.source.Close(); err != nil {
		return fmt.Errorf("failed to close revision source: %w", err)
	}
	return nil
}
