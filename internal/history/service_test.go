package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
	"github.com/sha1n/relic-history/internal/metrics"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
	"github.com/sha1n/relic-history/internal/sourcecontrol/mocks"
	"go.uber.org/mock/gomock"
)

func TestNewService_Validation(t *testing.T) {
	src := sourcecontrol.NewMemorySource()

	if _, err := NewService(nil, src, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration for nil settings, got %v", err)
	}
	if _, err := NewService(testSettings(t), nil, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration for nil source, got %v", err)
	}

	settings := testSettings(t)
	settings.Index.OpenMode = "sometimes"
	if _, err := NewService(settings, src, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration for bad open mode, got %v", err)
	}
}

func TestService_SyncIncremental(t *testing.T) {
	src := sourcecontrol.NewMemorySource(testHistory()...)
	svc, m := newTestService(t, testSettings(t), src)
	ctx := context.Background()

	if svc.IsReady() {
		t.Fatal("Expected service not ready before the first sync")
	}

	result, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.Added != 3 || result.IndexDocuments != 3 {
		t.Errorf("Expected 3 added and 3 documents, got %+v", result)
	}
	if !svc.IsReady() {
		t.Error("Expected service ready after sync")
	}

	src.Add(testRevision(4, "carol", "more work"))
	result, err = svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if result.Added != 1 || result.IndexDocuments != 4 {
		t.Errorf("Expected 1 added and 4 documents, got %+v", result)
	}

	result, err = svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Third sync failed: %v", err)
	}
	if result.Added != 0 || result.IndexDocuments != 4 {
		t.Errorf("Expected nothing added and 4 documents, got %+v", result)
	}

	state := svc.State()
	if state.LastRevision != 4 || state.Documents != 4 {
		t.Errorf("Expected state at revision 4 with 4 documents, got %+v", state)
	}
	if got := testutil.ToFloat64(m.RevisionsIndexed); got != 4 {
		t.Errorf("Expected 4 revisions indexed, got %v", got)
	}
	if got := testutil.ToFloat64(m.Documents); got != 4 {
		t.Errorf("Expected documents gauge 4, got %v", got)
	}
}

func TestService_SyncFetchesFromNextRevision(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockRevisionSource(ctrl)
	gomock.InOrder(
		src.EXPECT().FetchRange(gomock.Any(), int64(0), sourcecontrol.LatestRevision).Return(testHistory(), nil),
		src.EXPECT().FetchRange(gomock.Any(), int64(4), sourcecontrol.LatestRevision).Return([]domain.RevisionRecord{}, nil),
	)
	src.EXPECT().Close().Return(nil)

	svc, _ := newTestService(t, testSettings(t), src)

	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
}

func TestService_SearchDuringFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockRevisionSource(ctrl)
	fetching := make(chan struct{})
	release := make(chan struct{})
	gomock.InOrder(
		src.EXPECT().FetchRange(gomock.Any(), int64(0), sourcecontrol.LatestRevision).Return(testHistory(), nil),
		src.EXPECT().FetchRange(gomock.Any(), int64(4), sourcecontrol.LatestRevision).
			DoAndReturn(func(ctx context.Context, begin, end int64) ([]domain.RevisionRecord, error) {
				close(fetching)
				<-release
				return []domain.RevisionRecord{testRevision(4, "alice", "late work")}, nil
			}),
	)
	src.EXPECT().Close().Return(nil)

	svc, _ := newTestService(t, testSettings(t), src)
	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	syncDone := make(chan error, 1)
	go func() {
		_, err := svc.Sync(context.Background())
		syncDone <- err
	}()
	<-fetching

	searched := make(chan error, 1)
	go func() {
		result, err := svc.Search(SearchOptions{Query: "Author:alice"})
		if err == nil && result.TotalHits != 2 {
			err = fmt.Errorf("expected 2 hits, got %d", result.TotalHits)
		}
		searched <- err
	}()

	select {
	case err := <-searched:
		if err != nil {
			t.Errorf("Search during fetch failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Expected search to complete while the fetch is blocked")
	}

	close(release)
	if err := <-syncDone; err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if state := svc.State(); state.LastRevision != 4 {
		t.Errorf("Expected state at revision 4, got %d", state.LastRevision)
	}
}

func TestService_IndexRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockRevisionSource(ctrl)
	records := testHistory()
	gomock.InOrder(
		src.EXPECT().FetchRange(gomock.Any(), int64(2), int64(3)).Return(records[1:], nil),
		src.EXPECT().FetchRange(gomock.Any(), int64(0), int64(1)).Return(records[:1], nil),
		src.EXPECT().FetchRange(gomock.Any(), int64(4), sourcecontrol.LatestRevision).Return([]domain.RevisionRecord{}, nil),
	)
	src.EXPECT().Close().Return(nil)

	svc, _ := newTestService(t, testSettings(t), src)
	ctx := context.Background()

	if _, err := svc.IndexRange(ctx, 3, 2); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration for a reversed range, got %v", err)
	}

	result, err := svc.IndexRange(ctx, 2, 3)
	if err != nil {
		t.Fatalf("IndexRange failed: %v", err)
	}
	if result.Added != 2 || result.IndexDocuments != 2 {
		t.Errorf("Expected 2 added and 2 documents, got %+v", result)
	}

	result, err = svc.IndexRange(ctx, 0, 1)
	if err != nil {
		t.Fatalf("IndexRange failed: %v", err)
	}
	if result.IndexDocuments != 3 {
		t.Errorf("Expected 3 documents, got %+v", result)
	}
	if state := svc.State(); state.LastRevision != 3 {
		t.Errorf("Expected last revision to stay at 3, got %d", state.LastRevision)
	}

	if _, err := svc.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
}

func TestService_SyncFetchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockRevisionSource(ctrl)
	src.EXPECT().
		FetchRange(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &sourcecontrol.FetchError{Provider: "svn", Op: "log", Err: errors.New("connection refused")})
	src.EXPECT().Close().Return(nil)

	svc, m := newTestService(t, testSettings(t), src)

	_, err := svc.Sync(context.Background())
	if !errors.Is(err, domain.ErrSourceFetch) {
		t.Fatalf("Expected ErrSourceFetch, got %v", err)
	}

	if svc.IsReady() {
		t.Error("Expected service not ready after a failed first sync")
	}
	if svc.State().Error == "" {
		t.Error("Expected the error to be recorded in the manifest")
	}
	if got := testutil.ToFloat64(m.FetchErrors); got != 1 {
		t.Errorf("Expected 1 fetch error, got %v", got)
	}
}

func TestService_SecondInstanceFindsNothingNew(t *testing.T) {
	settings := testSettings(t)
	first, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))
	second, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))

	if _, err := first.Sync(context.Background()); err != nil {
		t.Fatalf("First sync failed: %v", err)
	}

	result, err := second.Sync(context.Background())
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if result.Added != 0 || result.IndexDocuments != 3 {
		t.Errorf("Expected the second instance to add nothing, got %+v", result)
	}
}

func TestService_CreateModeRebuilds(t *testing.T) {
	settings := testSettings(t)
	settings.Index.OpenMode = indexing.ModeCreate.String()
	svc, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))

	for i := 0; i < 2; i++ {
		result, err := svc.Sync(context.Background())
		if err != nil {
			t.Fatalf("Sync %d failed: %v", i, err)
		}
		if result.Added != 3 || result.IndexDocuments != 3 {
			t.Errorf("Sync %d: expected a rebuild of 3 documents, got %+v", i, result)
		}
	}
}

func TestService_TrySyncWhileLocked(t *testing.T) {
	settings := testSettings(t)
	svc, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))

	other := indexing.NewFileLock(filepath.Join(settings.Index.BaseDir, LockFilename))
	acquired, err := other.TryLock()
	if err != nil || !acquired {
		t.Fatalf("Expected to acquire the lock, got %v (err=%v)", acquired, err)
	}

	_, synced, err := svc.TrySync(context.Background())
	if err != nil {
		t.Fatalf("TrySync failed: %v", err)
	}
	if synced {
		t.Error("Expected TrySync to skip while another owner holds the lock")
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if _, synced, err = svc.TrySync(context.Background()); err != nil || !synced {
		t.Errorf("Expected TrySync to run after release, got synced=%v err=%v", synced, err)
	}
}

func TestService_SyncLockTimeout(t *testing.T) {
	settings := testSettings(t)
	settings.Sync.LockTimeout = 50 * time.Millisecond
	svc, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))

	other := indexing.NewFileLock(filepath.Join(settings.Index.BaseDir, LockFilename))
	if acquired, err := other.TryLock(); err != nil || !acquired {
		t.Fatalf("Expected to acquire the lock, got %v (err=%v)", acquired, err)
	}
	defer func() { _ = other.Unlock() }()

	if _, err := svc.Sync(context.Background()); !errors.Is(err, indexing.ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout, got %v", err)
	}

	// Initialize logs the timeout and carries on
	if err := svc.Initialize(context.Background()); err != nil {
		t.Errorf("Initialize failed: %v", err)
	}
}

func TestService_InitializeWithoutSync(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockRevisionSource(ctrl)
	src.EXPECT().Close().Return(nil)

	settings := testSettings(t)
	settings.Sync.OnStart = false
	svc, _ := newTestService(t, settings, src)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if svc.IsReady() {
		t.Error("Expected service not ready without an index")
	}
}

func TestService_InitializeSyncs(t *testing.T) {
	svc, _ := newTestService(t, testSettings(t), sourcecontrol.NewMemorySource(testHistory()...))

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !svc.IsReady() {
		t.Error("Expected service ready after initialize")
	}
}

func TestService_ReopensExistingIndex(t *testing.T) {
	settings := testSettings(t)
	first, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))
	if _, err := first.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	second, _ := newTestService(t, settings, sourcecontrol.NewMemorySource())
	if !second.IsReady() {
		t.Error("Expected a new service to pick up the existing index")
	}
}

func TestService_Search(t *testing.T) {
	svc, m := newTestService(t, testSettings(t), sourcecontrol.NewMemorySource(testHistory()...))
	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	result, err := svc.Search(SearchOptions{Query: "Author:alice"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalHits != 2 {
		t.Errorf("Expected 2 hits, got %d", result.TotalHits)
	}
	if top, _ := result.TopHit(); top.RevisionNumber() != 3 {
		t.Errorf("Expected revision 3 first, got %d", top.RevisionNumber())
	}

	if _, err := svc.Search(SearchOptions{Query: "Author:("}); !errors.Is(err, domain.ErrQueryParse) {
		t.Errorf("Expected ErrQueryParse, got %v", err)
	}

	if got := testutil.ToFloat64(m.SearchesTotal.WithLabelValues(metrics.OutcomeOK)); got != 1 {
		t.Errorf("Expected 1 ok search, got %v", got)
	}
	if got := testutil.ToFloat64(m.SearchesTotal.WithLabelValues(metrics.OutcomeParseError)); got != 1 {
		t.Errorf("Expected 1 failed search, got %v", got)
	}
}

func TestService_SearchUsesConfiguredLimit(t *testing.T) {
	settings := testSettings(t)
	settings.Search.MaxResults = 1
	svc, _ := newTestService(t, settings, sourcecontrol.NewMemorySource(testHistory()...))
	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	result, err := svc.Search(SearchOptions{Query: "*:*"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Hits) != 1 || result.TotalHits != 3 {
		t.Errorf("Expected 1 of 3 hits, got %d of %d", len(result.Hits), result.TotalHits)
	}
}

func TestService_SearchNotReady(t *testing.T) {
	svc, _ := newTestService(t, testSettings(t), sourcecontrol.NewMemorySource())

	if _, err := svc.Search(SearchOptions{Query: "*:*"}); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	if _, _, err := svc.Revision(1); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestService_Revision(t *testing.T) {
	svc, _ := newTestService(t, testSettings(t), sourcecontrol.NewMemorySource(testHistory()...))
	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	hit, found, err := svc.Revision(2)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	if !found {
		t.Fatal("Expected revision 2 to be found")
	}
	if hit.Author() != "bob" {
		t.Errorf("Expected author bob, got %q", hit.Author())
	}

	if _, found, err := svc.Revision(99); err != nil || found {
		t.Errorf("Expected revision 99 to be missing, got found=%v err=%v", found, err)
	}
}

func TestService_StartSyncsPeriodically(t *testing.T) {
	settings := testSettings(t)
	settings.Sync.Interval = 20 * time.Millisecond
	src := sourcecontrol.NewMemorySource(testHistory()...)
	svc, _ := newTestService(t, settings, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	src.Add(testRevision(4, "carol", "late commit"))
	svc.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for svc.State().LastRevision != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected periodic sync to reach revision 4, got %d", svc.State().LastRevision)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService_CloseClosesSource(t *testing.T) {
	src := sourcecontrol.NewMemorySource(testHistory()...)
	svc, err := NewService(testSettings(t), src, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	svc.Start(context.Background())

	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := src.FetchRange(context.Background(), 0, sourcecontrol.LatestRevision); !errors.Is(err, sourcecontrol.ErrSourceClosed) {
		t.Errorf("Expected ErrSourceClosed, got %v", err)
	}
}
