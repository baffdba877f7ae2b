package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/internal/infrastructure"
)

type fakeResolver struct {
	links map[string]domain.ResolvedLink
	calls atomic.Int32
}

func (f *fakeResolver) Resolve(ctx context.Context, shareText string) (*domain.ResolvedLink, error) {
	f.calls.Add(1)
	link, ok := f.links[shareText]
	if !ok {
		return nil, &domain.ParseError{Kind: domain.ParseNoURLFound, Input: shareText}
	}
	return &link, nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	errs     map[string]error
	panics   map[string]bool
	delays   map[string]time.Duration
	loggedIn map[domain.Platform]bool
	guarded  map[domain.Platform]bool
	calls    map[string]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		errs:     make(map[string]error),
		panics:   make(map[string]bool),
		delays:   make(map[string]time.Duration),
		loggedIn: make(map[domain.Platform]bool),
		guarded:  make(map[domain.Platform]bool),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, link domain.ResolvedLink) (*domain.ContentMetadata, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if n <= seen || f.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[link.ContentID]++
	err := f.errs[link.ContentID]
	panics := f.panics[link.ContentID]
	delay := f.delays[link.ContentID]
	needsLogin := f.guarded[link.Platform] && !f.loggedIn[link.Platform]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if panics {
		panic("parser exploded on " + link.ContentID)
	}
	if needsLogin {
		return nil, domain.ErrLoginRequired
	}
	if err != nil {
		return nil, err
	}
	return &domain.ContentMetadata{
		Title:     "title " + link.ContentID,
		Tags:      []string{"tag"},
		Stats:     domain.Stats{Likes: 7},
		PlayURL:   "https://cdn.example/" + link.ContentID + ".mp4",
		SourceURL: link.CanonicalURL,
	}, nil
}

func (f *fakeFetcher) setErr(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, id)
		return
	}
	f.errs[id] = err
}

func (f *fakeFetcher) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// fakeSessions unlocks a guarded platform on the fetcher once credentials arrive
type fakeSessions struct {
	fetcher *fakeFetcher
	mu      sync.Mutex
	applied []*domain.Credentials
}

func (s *fakeSessions) ApplyCredentials(creds *domain.Credentials) error {
	s.mu.Lock()
	s.applied = append(s.applied, creds)
	s.mu.Unlock()
	s.fetcher.mu.Lock()
	defer s.fetcher.mu.Unlock()
	s.fetcher.loggedIn[creds.Platform] = true
	return nil
}

type fakeDownloader struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, playURL string, naming domain.MediaNaming) (*domain.DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.fail[naming.ContentID] {
		return nil, &domain.DownloadError{Kind: domain.DownloadNetwork, Err: errors.New("connection reset")}
	}
	return &domain.DownloadResult{
		VideoPath: "/media/" + string(naming.Platform) + "/" + naming.ContentID + ".mp4",
	}, nil
}

type fakeSubtitles struct {
	calls atomic.Int32
}

func (f *fakeSubtitles) Resolve(ctx context.Context, videoPath string) domain.SubtitleResult {
	f.calls.Add(1)
	return domain.SubtitleResult{Text: "字幕", Origin: domain.OriginEmbedded}
}

type fakeExporter struct {
	mu      sync.Mutex
	err     error
	records []domain.AggregatedRecord
}

func (f *fakeExporter) AppendRow(record domain.AggregatedRecord) error {
	return f.AppendBatch([]domain.AggregatedRecord{record})
}

func (f *fakeExporter) AppendBatch(records []domain.AggregatedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeExporter) contentIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.records))
	for i, r := range f.records {
		ids[i] = r.ContentID()
	}
	return ids
}

type fixture struct {
	repo       *infrastructure.SQLiteJobRepository
	creds      *infrastructure.SQLiteCredentialStore
	resolver   *fakeResolver
	fetcher    *fakeFetcher
	sessions   *fakeSessions
	downloader *fakeDownloader
	subtitles  *fakeSubtitles
	exporter   *fakeExporter
	pipeline   *Pipeline
	position   int
}

// shareText maps content ids onto douyin share lines the fake resolver knows
func shareText(id string) string {
	return "看看这个视频 https://v.douyin.com/" + id + "/ 复制此链接"
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	db, err := infrastructure.OpenDatabase(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { infrastructure.CloseDatabase(db) })

	links := make(map[string]domain.ResolvedLink, len(ids))
	for _, id := range ids {
		links[shareText(id)] = domain.ResolvedLink{
			Platform:     domain.PlatformDouyin,
			ContentID:    id,
			CanonicalURL: "https://www.douyin.com/video/" + id,
		}
	}

	f := &fixture{
		repo:       infrastructure.NewSQLiteJobRepository(db),
		creds:      infrastructure.NewSQLiteCredentialStore(db),
		resolver:   &fakeResolver{links: links},
		fetcher:    newFakeFetcher(),
		downloader: &fakeDownloader{fail: make(map[string]bool)},
		subtitles:  &fakeSubtitles{},
		exporter:   &fakeExporter{},
	}
	f.sessions = &fakeSessions{fetcher: f.fetcher}
	f.pipeline = NewPipeline(PipelineDeps{
		Repo:        f.repo,
		Resolver:    f.resolver,
		Fetcher:     f.fetcher,
		Downloader:  f.downloader,
		Subtitles:   f.subtitles,
		Exporter:    f.exporter,
		Credentials: f.creds,
		Sessions:    f.sessions,
		Logger:      zap.NewNop(),
	})
	return f
}

func (f *fixture) newJob(t *testing.T, text string) *domain.Job {
	t.Helper()
	job := domain.NewJob("batch-1", f.position, text)
	f.position++
	require.NoError(t, f.repo.Create(job))
	return job
}

func (f *fixture) stored(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := f.repo.FindByID(id)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}
