package infrastructure

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// maxPageBytes caps how much of a page or API response is buffered
const maxPageBytes = 8 << 20

// Page is a fully read HTTP response
type Page struct {
	StatusCode  int
	ContentType string
	FinalURL    *url.URL
	Body        []byte
}

// Session holds the cookie jar, headers and pacing of one platform. All
// requests for the platform go through it and are serialized by its lock.
type Session struct {
	platform domain.Platform
	profile  *platformProfile
	client   *http.Client
	jar      http.CookieJar
	headers  http.Header
	limiter  *rate.Limiter
	minDelay time.Duration
	maxDelay time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	headMu  sync.RWMutex
	randMu  sync.Mutex
	randSrc *rand.Rand
}

// SessionManager owns one Session per platform
type SessionManager struct {
	config    *domain.Config
	transport http.RoundTripper
	logger    *zap.Logger

	mu         sync.Mutex
	sessions   map[domain.Platform]*Session
	redirector *Session
}

// SessionOption customizes a SessionManager
type SessionOption func(*SessionManager)

// WithTransport routes every session's traffic through rt
func WithTransport(rt http.RoundTripper) SessionOption {
	return func(m *SessionManager) { m.transport = rt }
}

// NewSessionManager creates a new session manager
func NewSessionManager(config *domain.Config, logger *zap.Logger, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		config:   config,
		logger:   logger,
		sessions: make(map[domain.Platform]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the session of a platform, creating it on first use
func (m *SessionManager) Session(platform domain.Platform) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[platform]; ok {
		return s, nil
	}
	profile, err := profileFor(platform)
	if err != nil {
		return nil, err
	}
	s, err := m.newSession(profile.platform, profile, m.config.PacingFor(profile.platform))
	if err != nil {
		return nil, err
	}
	m.sessions[platform] = s
	return s, nil
}

// Redirector returns the session that expands generic short links. It
// belongs to no platform: no cookies, referer or pacing are shared with the
// platform sessions.
func (m *SessionManager) Redirector() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redirector == nil {
		s, err := m.newSession("", nil, domain.PlatformConfig{})
		if err != nil {
			return nil, err
		}
		m.redirector = s
	}
	return m.redirector, nil
}

// newSession builds a session. profile may be nil for a session that is
// not tied to a platform.
func (m *SessionManager) newSession(platform domain.Platform, profile *platformProfile, pacing domain.PlatformConfig) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	fetch := m.config.Fetch

	limit := rate.Inf
	if pacing.RequestsPerSecond > 0 {
		limit = rate.Limit(pacing.RequestsPerSecond)
	}
	burst := fetch.Burst
	if burst < 1 {
		burst = 1
	}

	maxRedirects := fetch.MaxRedirects
	client := &http.Client{
		Jar:       jar,
		Transport: m.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	headers := http.Header{}
	headers.Set("User-Agent", fetch.UserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if profile != nil && profile.referer != "" {
		headers.Set("Referer", profile.referer)
	}
	if profile != nil && profile.origin != "" {
		headers.Set("Origin", profile.origin)
	}

	name := string(platform)
	if name == "" {
		name = "redirector"
	}

	return &Session{
		platform: platform,
		profile:  profile,
		client:   client,
		jar:      jar,
		headers:  headers,
		limiter:  rate.NewLimiter(limit, burst),
		minDelay: pacing.MinDelay,
		maxDelay: pacing.MaxDelay,
		timeout:  fetch.RequestTimeout,
		logger:   m.logger.With(zap.String("platform", name)),
		randSrc:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// ApplyCredentials installs cookies and headers into the platform's session
func (m *SessionManager) ApplyCredentials(creds *domain.Credentials) error {
	s, err := m.Session(creds.Platform)
	if err != nil {
		return err
	}
	s.apply(creds)
	return nil
}

// LoadCredentials applies every stored, unexpired credential set
func (m *SessionManager) LoadCredentials(store domain.CredentialStore) error {
	for _, platform := range domain.Platforms {
		creds, err := store.Load(platform)
		if err != nil {
			return fmt.Errorf("failed to load %s credentials: %w", platform, err)
		}
		if creds == nil {
			continue
		}
		if err := m.ApplyCredentials(creds); err != nil {
			return err
		}
		m.logger.Info("Applied stored credentials", zap.String("platform", string(platform)))
	}
	return nil
}

func (s *Session) apply(creds *domain.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies := make([]*http.Cookie, 0, len(creds.Cookies))
	for name, value := range creds.Cookies {
		c := &http.Cookie{Name: name, Value: value, Path: "/"}
		if creds.ExpiresAt != nil {
			c.Expires = *creds.ExpiresAt
		}
		cookies = append(cookies, c)
	}
	for _, raw := range s.profile.cookieURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		s.jar.SetCookies(u, cookies)
	}

	s.headMu.Lock()
	for k, v := range creds.Headers {
		s.headers.Set(k, v)
	}
	s.headMu.Unlock()
}

// Cookies returns the cookies the session would send to rawURL
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// delay returns a uniform random duration in [minDelay, maxDelay]
func (s *Session) delay() time.Duration {
	if s.maxDelay <= s.minDelay {
		return s.minDelay
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.minDelay + time.Duration(s.randSrc.Int63n(int64(s.maxDelay-s.minDelay)+1))
}

// pace blocks until the platform's limiter and randomized delay allow a request
func (s *Session) pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return sleepContext(ctx, s.delay())
}

func (s *Session) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	s.headMu.RLock()
	for k, v := range s.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	s.headMu.RUnlock()
	return req, nil
}

// Get performs a paced GET under the session lock and reads the whole body.
// The request runs with the session timeout, detached from ctx cancellation
// once started.
func (s *Session) Get(ctx context.Context, rawURL string) (*Page, error) {
	if err := s.pace(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reqCtx, cancel := detach(ctx, s.timeout)
	defer cancel()

	req, err := s.newRequest(reqCtx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	s.logger.Debug("HTTP GET",
		zap.String("url", rawURL),
		zap.String("final_url", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode))

	return &Page{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL,
		Body:        body,
	}, nil
}

// Stream performs a paced GET under the session lock and hands the live
// response to fn. The body is closed when fn returns.
func (s *Session) Stream(ctx context.Context, rawURL string, timeout time.Duration, fn func(*http.Response) error) error {
	if err := s.pace(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reqCtx, cancel := detach(ctx, timeout)
	defer cancel()

	req, err := s.newRequest(reqCtx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return fn(resp)
}

// detach derives a context that survives cancellation of parent but still
// carries its values, bounded by timeout.
func detach(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
