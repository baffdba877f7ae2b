package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// testConfig returns a config with pacing and retry delays disabled
func testConfig() *domain.Config {
	config := domain.DefaultConfig()
	config.Fetch.RequestsPerSecond = 0
	config.Fetch.MinDelay = 0
	config.Fetch.MaxDelay = 0
	config.Fetch.RetryMinDelay = 0
	config.Fetch.RetryMaxDelay = 0
	config.Fetch.RequestTimeout = 5 * time.Second
	return config
}

// hostRewriter sends every request to one test server while keeping the
// original host visible to the handler through r.Host.
type hostRewriter struct {
	target *url.URL
	calls  atomic.Int32
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	h.calls.Add(1)
	out := req.Clone(req.Context())
	out.URL.Scheme = h.target.Scheme
	out.URL.Host = h.target.Host
	out.Host = req.URL.Host
	resp, err := http.DefaultTransport.RoundTrip(out)
	if resp != nil {
		resp.Request = req
	}
	return resp, err
}

// newRewritingSessions starts a server for handler and returns sessions
// whose traffic for any host lands on it.
func newRewritingSessions(t *testing.T, config *domain.Config, handler http.Handler) (*SessionManager, *hostRewriter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, _ := url.Parse(server.URL)
	rw := &hostRewriter{target: target}
	return NewSessionManager(config, zap.NewNop(), WithTransport(rw)), rw
}

// offlineTransport fails every request and counts the attempts
type offlineTransport struct {
	calls atomic.Int32
}

func (o *offlineTransport) RoundTrip(*http.Request) (*http.Response, error) {
	o.calls.Add(1)
	return nil, errors.New("network disabled in test")
}

// fakeTool stands in for ffmpeg. output returns the content to write for a
// run; an empty string simulates a run that produced nothing.
type fakeTool struct {
	available bool
	output    func(args []string) string

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeTool) Available() bool { return f.available }

func (f *fakeTool) Run(_ context.Context, args []string, outputPath string) (*domain.ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	if !f.available {
		return nil, domain.ErrToolUnavailable
	}
	content := ""
	if f.output != nil {
		content = f.output(args)
	}
	if content == "" {
		return &domain.ToolResult{ExitCode: 1, OutputPath: outputPath}, fmt.Errorf("fake tool produced no output")
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return nil, err
	}
	return &domain.ToolResult{OutputPath: outputPath}, nil
}

func (f *fakeTool) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// hasArg reports whether args contains value
func hasArg(args []string, value string) bool {
	for _, a := range args {
		if a == value {
			return true
		}
	}
	return false
}
