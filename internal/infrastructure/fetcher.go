package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// ContentFetcher retrieves content metadata through the platform sessions
type ContentFetcher struct {
	sessions *SessionManager
	config   domain.FetchConfig
	logger   *zap.Logger

	randMu  sync.Mutex
	randSrc *rand.Rand
}

// NewContentFetcher creates a new content fetcher
func NewContentFetcher(sessions *SessionManager, config domain.FetchConfig, logger *zap.Logger) *ContentFetcher {
	return &ContentFetcher{
		sessions: sessions,
		config:   config,
		logger:   logger,
		randSrc:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// jitterBackOff waits a uniform random duration between min and max
type jitterBackOff struct {
	min, max time.Duration
	next     func(n int64) int64
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	if b.max <= b.min {
		return b.min
	}
	return b.min + time.Duration(b.next(int64(b.max-b.min)+1))
}

func (b *jitterBackOff) Reset() {}

func (f *ContentFetcher) newBackOff() backoff.BackOff {
	return &jitterBackOff{
		min: f.config.RetryMinDelay,
		max: f.config.RetryMaxDelay,
		next: func(n int64) int64 {
			f.randMu.Lock()
			defer f.randMu.Unlock()
			return f.randSrc.Int63n(n)
		},
	}
}

// Fetch implements domain.MetadataFetcher. The platform's metadata API is
// tried first when it has one; the canonical page is the fallback when the
// API answer cannot be parsed. Login walls are reported as
// domain.ErrLoginRequired and never retried.
func (f *ContentFetcher) Fetch(ctx context.Context, link domain.ResolvedLink) (*domain.ContentMetadata, error) {
	if !link.Valid() {
		return nil, &domain.FetchError{Kind: domain.FetchParse, Err: fmt.Errorf("incomplete link: %+v", link)}
	}
	profile, err := profileFor(link.Platform)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchParse, Err: err}
	}
	session, err := f.sessions.Session(link.Platform)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, Err: err}
	}

	var targets []string
	if api := profile.metadataURL(link); api != "" {
		targets = append(targets, api)
	}
	targets = append(targets, link.CanonicalURL)

	var lastErr error
	sawLoginWall := false
	for _, target := range targets {
		meta, err := f.fetchWithRetry(ctx, session, profile, target)
		if err != nil {
			if errors.Is(err, domain.ErrLoginRequired) {
				return nil, err
			}
			var fetchErr *domain.FetchError
			if errors.As(err, &fetchErr) && fetchErr.Kind == domain.FetchParse {
				lastErr = err
				continue
			}
			return nil, err
		}

		if !meta.HasPlayURL() {
			// metadata without a playable URL is what platforms serve to
			// anonymous visitors
			sawLoginWall = true
			continue
		}

		meta.SourceURL = link.CanonicalURL
		f.logger.Info("Fetched content metadata",
			zap.String("platform", string(link.Platform)),
			zap.String("content_id", link.ContentID),
			zap.String("title", meta.Title))
		return meta, nil
	}

	if sawLoginWall {
		return nil, domain.ErrLoginRequired
	}
	return nil, lastErr
}

func (f *ContentFetcher) fetchWithRetry(ctx context.Context, session *Session, profile *platformProfile, target string) (*domain.ContentMetadata, error) {
	attempt := 0
	operation := func() (*domain.ContentMetadata, error) {
		attempt++
		page, err := session.Get(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, &domain.FetchError{Kind: domain.FetchNetwork, Err: err}
		}

		if detectLogin(profile, page) {
			return nil, backoff.Permanent(domain.ErrLoginRequired)
		}

		switch {
		case page.StatusCode == http.StatusTooManyRequests:
			return nil, &domain.FetchError{Kind: domain.FetchRateLimited, Err: fmt.Errorf("status %d from %s", page.StatusCode, target)}
		case page.StatusCode >= 500:
			return nil, &domain.FetchError{Kind: domain.FetchNetwork, Err: fmt.Errorf("status %d from %s", page.StatusCode, target)}
		case page.StatusCode >= 400:
			return nil, backoff.Permanent(&domain.FetchError{Kind: domain.FetchNetwork, Err: fmt.Errorf("status %d from %s", page.StatusCode, target)})
		}

		meta, err := parseContent(profile, page)
		if err != nil {
			return nil, backoff.Permanent(&domain.FetchError{Kind: domain.FetchParse, Err: err})
		}
		return meta, nil
	}

	maxAttempts := f.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(f.newBackOff()),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			f.logger.Warn("Metadata fetch failed, retrying",
				zap.String("url", target),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
}
