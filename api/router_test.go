package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/api/middleware"
	"github.com/yourusername/vidcollect-go/internal/app"
	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/internal/infrastructure"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

// stubResolver resolves "douyin:<id>" lines
type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, shareText string) (*domain.ResolvedLink, error) {
	id, ok := strings.CutPrefix(shareText, "douyin:")
	if !ok || id == "" {
		return nil, &domain.ParseError{Kind: domain.ParseNoURLFound}
	}
	return &domain.ResolvedLink{
		Platform:     domain.PlatformDouyin,
		ContentID:    id,
		CanonicalURL: "https://www.douyin.com/video/" + id,
	}, nil
}

func (r stubResolver) ResolveAll(ctx context.Context, lines []string) ([]domain.ResolvedLink, map[int]error) {
	var links []domain.ResolvedLink
	errs := make(map[int]error)
	for i, line := range lines {
		link, err := r.Resolve(ctx, line)
		if err != nil {
			errs[i] = err
			continue
		}
		links = append(links, *link)
	}
	return links, errs
}

// stubFetcher demands a login until credentials are applied
type stubFetcher struct {
	mu       sync.Mutex
	loggedIn bool
}

func (f *stubFetcher) Fetch(ctx context.Context, link domain.ResolvedLink) (*domain.ContentMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return nil, domain.ErrLoginRequired
	}
	return &domain.ContentMetadata{Title: "t" + link.ContentID, PlayURL: "https://cdn/" + link.ContentID}, nil
}

func (f *stubFetcher) ApplyCredentials(creds *domain.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = true
	return nil
}

type stubDownloader struct{}

func (stubDownloader) Download(ctx context.Context, playURL string, naming domain.MediaNaming) (*domain.DownloadResult, error) {
	return &domain.DownloadResult{VideoPath: "/media/" + naming.ContentID + ".mp4"}, nil
}

type stubSubtitles struct{}

func (stubSubtitles) Resolve(ctx context.Context, videoPath string) domain.SubtitleResult {
	return domain.UnavailableSubtitle()
}

type stubExporter struct{}

func (stubExporter) AppendRow(domain.AggregatedRecord) error     { return nil }
func (stubExporter) AppendBatch([]domain.AggregatedRecord) error { return nil }

type stubPinger struct{ err error }

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

type testServer struct {
	router  http.Handler
	runner  *app.BatchRunner
	fetcher *stubFetcher
	repo    *infrastructure.SQLiteJobRepository
}

func setupTestServer(t *testing.T, pinger stubPinger) *testServer {
	t.Helper()
	db, err := infrastructure.OpenDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { infrastructure.CloseDatabase(db) })

	logsDir := t.TempDir()
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: logsDir})
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })

	repo := infrastructure.NewSQLiteJobRepository(db)
	fetcher := &stubFetcher{}
	pipeline := app.NewPipeline(app.PipelineDeps{
		Repo:        repo,
		Resolver:    stubResolver{},
		Fetcher:     fetcher,
		Downloader:  stubDownloader{},
		Subtitles:   stubSubtitles{},
		Exporter:    stubExporter{},
		Credentials: infrastructure.NewSQLiteCredentialStore(db),
		Sessions:    fetcher,
		Events:      events,
		Logger:      zap.NewNop(),
	})
	runner := app.NewBatchRunner(repo, pipeline, &domain.PipelineConfig{Workers: 2}, nil, events, zap.NewNop())
	t.Cleanup(runner.Wait)

	router := SetupRouter(context.Background(), runner, pipeline, stubResolver{}, pinger, logsDir, zap.NewNop())
	return &testServer{router: router, runner: runner, fetcher: fetcher, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthAndReady(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := setupTestServer(t, stubPinger{err: errors.New("closed")})
	w = down.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := setupTestServer(t, stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestSubmitBatch_WaitAndResumeWithCredentials(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:1", "not a link", "douyin:2"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary domain.BatchSummary
	decode(t, w, &summary)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Suspended)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "parse:no_url_found", summary.Outcomes[1].Category)

	w = s.do(t, http.MethodPost, "/api/v1/credentials/douyin", map[string]interface{}{
		"cookies": map[string]string{"sessionid": "abc"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resumed struct {
		Platform string               `json:"platform"`
		Resumed  int                  `json:"resumed"`
		Outcomes []domain.LinkOutcome `json:"outcomes"`
	}
	decode(t, w, &resumed)
	assert.Equal(t, "douyin", resumed.Platform)
	assert.Equal(t, 2, resumed.Resumed)
	for _, o := range resumed.Outcomes {
		assert.Equal(t, domain.StateExported, o.State)
	}

	w = s.do(t, http.MethodGet, "/api/v1/batches/"+summary.BatchID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &summary)
	assert.Equal(t, 2, summary.Succeeded)
}

func TestSubmitBatch_Async(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:7"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		BatchID string        `json:"batch_id"`
		Jobs    []*domain.Job `json:"jobs"`
	}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.Jobs, 1)

	s.runner.Wait()

	w = s.do(t, http.MethodGet, "/api/v1/jobs/"+resp.Jobs[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job domain.Job
	decode(t, w, &job)
	assert.Equal(t, domain.StateLoginRequired, job.State)
}

func TestSubmitBatch_BadRequests(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{"lines": []string{" ", ""}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), app.ErrEmptyBatch.Error())
}

func TestJobsEndpoints(t *testing.T) {
	s := setupTestServer(t, stubPinger{})
	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:1", "nothing"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/jobs?state=parse_failed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []*domain.Job
	decode(t, w, &jobs)
	require.Len(t, jobs, 1)
	parseFailed := jobs[0]

	w = s.do(t, http.MethodGet, "/api/v1/jobs/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.JobStats
	decode(t, w, &stats)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.LoginRequired)

	w = s.do(t, http.MethodGet, "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/jobs/"+parseFailed.ID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/jobs/missing/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetryJob(t *testing.T) {
	s := setupTestServer(t, stubPinger{})
	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:3"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var summary domain.BatchSummary
	decode(t, w, &summary)
	require.NoError(t, s.fetcher.ApplyCredentials(&domain.Credentials{Platform: domain.PlatformDouyin}))

	w = s.do(t, http.MethodPost, "/api/v1/jobs/"+summary.Outcomes[0].JobID+"/retry", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var outcome domain.LinkOutcome
	decode(t, w, &outcome)
	assert.Equal(t, domain.StateExported, outcome.State)
}

func TestRetryJob_ConflictWhileRerunning(t *testing.T) {
	s := setupTestServer(t, stubPinger{})
	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:4"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var summary domain.BatchSummary
	decode(t, w, &summary)
	id := summary.Outcomes[0].JobID

	job, err := s.repo.FindByID(id)
	require.NoError(t, err)
	require.NoError(t, job.MarkResuming())
	claimed, err := s.repo.Claim(job, domain.StateLoginRequired)
	require.NoError(t, err)
	require.True(t, claimed)

	w = s.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/retry", nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestSetCredentials_Validation(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodPost, "/api/v1/credentials/myspace", map[string]interface{}{
		"cookies": map[string]string{"a": "b"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/credentials/douyin", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveEndpoint(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodPost, "/api/v1/resolve", map[string]interface{}{
		"lines": []string{"douyin:42", "garbage"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Links  []domain.ResolvedLink `json:"links"`
		Errors []struct {
			Line     int    `json:"line"`
			Category string `json:"category"`
		} `json:"errors"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Links, 1)
	assert.Equal(t, "42", resp.Links[0].ContentID)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Line)
	assert.Equal(t, "parse:no_url_found", resp.Errors[0].Category)
}

func TestUnknownRoute(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodGet, "/api/v1/nope", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogsEndpoint(t *testing.T) {
	s := setupTestServer(t, stubPinger{})

	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:11", "douyin:12"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Category string            `json:"category"`
		Count    int               `json:"count"`
		Entries  []logger.LogEntry `json:"entries"`
	}
	w = s.do(t, http.MethodGet, "/api/v1/logs/pipeline?q=job_suspended", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, "pipeline", resp.Category)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "job_suspended", resp.Entries[0].Message)
	assert.Equal(t, "douyin", resp.Entries[0].Fields["platform"])

	w = s.do(t, http.MethodGet, "/api/v1/logs/pipeline?limit=1", nil)
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Count)

	w = s.do(t, http.MethodGet, "/api/v1/logs/tool?date=2001-01-01", nil)
	decode(t, w, &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, resp.Count)

	w = s.do(t, http.MethodGet, "/api/v1/logs/access", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/logs/pipeline?date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogStream(t *testing.T) {
	s := setupTestServer(t, stubPinger{})
	w := s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:21"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	server := httptest.NewServer(s.router)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/logs/pipeline/stream?backlog=1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var entry logger.LogEntry
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "batch_completed", entry.Message)

	w = s.do(t, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"lines": []string{"douyin:22"},
		"wait":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "batch_submitted", entry.Message)
	assert.Equal(t, "pipeline", entry.Category)

	w = s.do(t, http.MethodGet, "/api/v1/logs/nope/stream", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
