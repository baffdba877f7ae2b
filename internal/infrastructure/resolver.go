package infrastructure

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// shareURLPattern matches the ASCII run of a URL embedded in share text.
// Share text often glues CJK characters directly onto the link.
var shareURLPattern = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)

const trailingURLPunct = `.,;:!?'")]}`

// PlatformResolver resolves share text into a platform, content id and
// canonical URL. It issues at most one redirect-following request and one
// page fetch per resolution.
type PlatformResolver struct {
	sessions *SessionManager
	logger   *zap.Logger
}

// NewPlatformResolver creates a new resolver
func NewPlatformResolver(sessions *SessionManager, logger *zap.Logger) *PlatformResolver {
	return &PlatformResolver{
		sessions: sessions,
		logger:   logger,
	}
}

// ExtractURL returns the first http(s) URL in share text
func ExtractURL(shareText string) (string, bool) {
	raw := shareURLPattern.FindString(shareText)
	raw = strings.TrimRight(raw, trailingURLPunct)
	if raw == "" {
		return "", false
	}
	return raw, true
}

// Resolve implements domain.LinkResolver
func (r *PlatformResolver) Resolve(ctx context.Context, shareText string) (*domain.ResolvedLink, error) {
	raw, ok := ExtractURL(shareText)
	if !ok {
		return nil, &domain.ParseError{Kind: domain.ParseNoURLFound}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, &domain.ParseError{Kind: domain.ParseNoURLFound, Input: raw}
	}

	// page holds a body already fetched while following redirects
	var page *Page
	redirected := false

	if hostMatches(u.Hostname(), genericShortHosts) {
		// the platform is unknown until the short link is expanded
		if session, err := r.sessions.Redirector(); err == nil {
			page, u = r.expand(ctx, session, u)
		}
		redirected = true
	}

	profile, ok := classify(u)
	if !ok {
		return nil, &domain.ParseError{Kind: domain.ParseUnknownPlatform, Input: u.String()}
	}

	if !redirected && profile.isShortLink(u) {
		if session, err := r.sessions.Session(profile.platform); err == nil {
			page, u = r.expand(ctx, session, u)
		}
		// a short link can expand onto another platform's domain
		if p, ok := classify(u); ok {
			profile = p
		}
	}

	link := &domain.ResolvedLink{
		Platform:     profile.platform,
		CanonicalURL: u.String(),
	}

	if id := profile.idFromURL(u); id != "" {
		link.ContentID = id
		return link, nil
	}

	if page == nil {
		page = r.fetchPage(ctx, profile.platform, u)
	}
	if page != nil {
		if id := profile.idFromPage(page.Body); id != "" {
			link.ContentID = id
			return link, nil
		}
	}

	return nil, &domain.ParseError{Kind: domain.ParseIDNotFound, Input: u.String()}
}

// expand follows redirects from a short link. On failure the original URL
// is kept.
func (r *PlatformResolver) expand(ctx context.Context, session *Session, u *url.URL) (*Page, *url.URL) {
	page, err := session.Get(ctx, u.String())
	if err != nil {
		r.logger.Warn("Failed to follow short link",
			zap.String("url", u.String()),
			zap.Error(err))
		return nil, u
	}
	if page.StatusCode >= 400 {
		return nil, page.FinalURL
	}
	return page, page.FinalURL
}

func (r *PlatformResolver) fetchPage(ctx context.Context, platform domain.Platform, u *url.URL) *Page {
	session, err := r.sessions.Session(platform)
	if err != nil {
		return nil
	}
	page, err := session.Get(ctx, u.String())
	if err != nil {
		r.logger.Warn("Failed to fetch page for content id",
			zap.String("url", u.String()),
			zap.Error(err))
		return nil
	}
	return page
}

// ResolveAll resolves each non-blank line and collects per-line errors
func (r *PlatformResolver) ResolveAll(ctx context.Context, lines []string) ([]domain.ResolvedLink, map[int]error) {
	var links []domain.ResolvedLink
	errs := make(map[int]error)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		link, err := r.Resolve(ctx, line)
		if err != nil {
			errs[i] = err
			continue
		}
		links = append(links, *link)
	}
	return links, errs
}
