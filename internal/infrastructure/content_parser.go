package infrastructure

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

var errNoContent = errors.New("no recognizable content in response")

// embeddedBlob is a JSON document that a page inlines into a script tag
type embeddedBlob struct {
	pattern    *regexp.Regexp
	urlEncoded bool
}

var embeddedBlobs = []embeddedBlob{
	{regexp.MustCompile(`(?s)<script id="RENDER_DATA" type="application/json">(.*?)</script>`), true},
	{regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`), false},
	{regexp.MustCompile(`(?s)window\.__APOLLO_STATE__\s*=\s*(\{.*?\})\s*;?\s*(?:\(function|</script>)`), false},
	{regexp.MustCompile(`(?s)window\._SSR_HYDRATED_DATA\s*=\s*(\{.*?\})\s*;?\s*</script>`), false},
}

var (
	undefinedLiteral = regexp.MustCompile(`\bundefined\b`)
	hashtagPattern   = regexp.MustCompile(`#\s?([^\s#@\[]+)(?:\[[^\]]*\])?#?`)
)

// extractEmbeddedJSON returns the first inlined JSON document of a page
func extractEmbeddedJSON(body []byte) (gjson.Result, bool) {
	for _, blob := range embeddedBlobs {
		m := blob.pattern.FindSubmatch(body)
		if len(m) < 2 {
			continue
		}
		raw := string(bytes.TrimSpace(m[1]))
		if blob.urlEncoded || strings.HasPrefix(raw, "%7B") {
			decoded, err := url.PathUnescape(raw)
			if err != nil {
				continue
			}
			raw = decoded
		}
		raw = undefinedLiteral.ReplaceAllString(raw, "null")
		if !gjson.Valid(raw) {
			continue
		}
		return gjson.Parse(raw), true
	}
	return gjson.Result{}, false
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// detectLogin reports whether a response demands authentication
func detectLogin(profile *platformProfile, page *Page) bool {
	if page.StatusCode == http.StatusUnauthorized || page.StatusCode == http.StatusForbidden {
		return true
	}

	if looksLikeJSON(page.Body) {
		for _, path := range []string{"status_code", "code", "result"} {
			if code := gjson.GetBytes(page.Body, path); code.Type == gjson.Number && profile.isLoginCode(code.Int()) {
				return true
			}
		}
		for _, path := range []string{"status_msg", "message", "msg"} {
			msg := strings.ToLower(gjson.GetBytes(page.Body, path).String())
			if msg == "need_login" || strings.Contains(msg, "login") {
				return true
			}
		}
		return false
	}

	// a page that still carries its data blob is content, even if it also
	// renders a login prompt
	if _, ok := extractEmbeddedJSON(page.Body); ok {
		return false
	}
	return hasLoginMarkers(page.Body)
}

func hasLoginMarkers(body []byte) bool {
	text := string(body)
	if strings.Contains(text, "登录") && strings.Contains(text, "密码") {
		return true
	}
	lower := strings.ToLower(text)
	return (strings.Contains(lower, "log in") || strings.Contains(lower, "login")) &&
		strings.Contains(lower, "password")
}

// parseContent extracts metadata from an API response or a content page:
// structured JSON first, markup scraping for whatever is still missing.
func parseContent(profile *platformProfile, page *Page) (*domain.ContentMetadata, error) {
	var (
		doc   gjson.Result
		found bool
	)
	if looksLikeJSON(page.Body) {
		if gjson.ValidBytes(page.Body) {
			doc, found = gjson.ParseBytes(page.Body), true
		}
	} else {
		doc, found = extractEmbeddedJSON(page.Body)
	}

	meta := &domain.ContentMetadata{}
	structured := false
	if found {
		if root, ok := findRoot(doc, profile.roots); ok {
			fillFromJSON(meta, root, profile.fields)
			structured = true
		}
	}

	scraped := false
	if !looksLikeJSON(page.Body) {
		scraped = fillFromMarkup(meta, page.Body)
	}

	if !structured && !scraped {
		return nil, errNoContent
	}

	if len(meta.Tags) == 0 {
		meta.Tags = hashtags(meta.Description)
	}
	if meta.Title == "" {
		meta.Title = firstLine(meta.Description)
	}
	return meta, nil
}

func findRoot(doc gjson.Result, rules []rootRule) (gjson.Result, bool) {
	for _, rule := range rules {
		base := doc
		if rule.path != "" {
			base = doc.Get(rule.path)
		}
		if !base.Exists() {
			continue
		}
		if !rule.each {
			if base.IsObject() {
				return base, true
			}
			continue
		}

		var found gjson.Result
		ok := false
		base.ForEach(func(_, child gjson.Result) bool {
			candidate := child
			if rule.sub != "" {
				candidate = child.Get(rule.sub)
			}
			if !candidate.IsObject() {
				return true
			}
			if rule.require != "" && !candidate.Get(rule.require).Exists() {
				return true
			}
			found, ok = candidate, true
			return false
		})
		if ok {
			return found, true
		}
	}
	return gjson.Result{}, false
}

func fillFromJSON(meta *domain.ContentMetadata, root gjson.Result, f fieldPaths) {
	meta.Title = firstString(root, f.title)
	meta.Description = firstString(root, f.description)
	meta.Tags = stringList(root, f.tags)
	meta.Stats = domain.Stats{
		Likes:     firstCount(root, f.likes),
		Comments:  firstCount(root, f.comments),
		Favorites: firstCount(root, f.favorites),
		Shares:    firstCount(root, f.shares),
	}
	meta.Author = domain.Author{
		Name: firstString(root, f.authorName),
		ID:   firstString(root, f.authorID),
	}
	meta.PlayURL = pickPlayURL(root, f.playURL)
}

func firstString(root gjson.Result, paths []string) string {
	for _, p := range paths {
		if r := root.Get(p); r.Exists() {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringList(root gjson.Result, paths []string) []string {
	for _, p := range paths {
		r := root.Get(p)
		if !r.IsArray() {
			continue
		}
		var out []string
		seen := make(map[string]bool)
		for _, item := range r.Array() {
			s := strings.TrimSpace(item.String())
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstCount(root gjson.Result, paths []string) int64 {
	for _, p := range paths {
		r := root.Get(p)
		switch r.Type {
		case gjson.Number:
			if n := r.Int(); n > 0 {
				return n
			}
			return 0
		case gjson.String:
			if n, ok := parseCount(r.Str); ok {
				return n
			}
		}
	}
	return 0
}

// pickPlayURL prefers a candidate without the watermark marker
func pickPlayURL(root gjson.Result, paths []string) string {
	var candidates []string
	for _, p := range paths {
		r := root.Get(p)
		if r.IsArray() {
			for _, item := range r.Array() {
				candidates = append(candidates, item.String())
			}
		} else if r.Exists() {
			candidates = append(candidates, r.String())
		}
	}

	var fallback string
	for _, c := range candidates {
		c = normalizeMediaURL(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "playwm") {
			return c
		}
		if fallback == "" {
			fallback = c
		}
	}
	return fallback
}

func normalizeMediaURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	default:
		return ""
	}
}

// fillFromMarkup fills empty fields from page markup and reports whether it
// found anything.
func fillFromMarkup(meta *domain.ContentMetadata, body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}

	found := false
	set := func(dst *string, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		found = true
		if *dst == "" {
			*dst = value
		}
	}

	set(&meta.Title, attrOf(doc, `meta[property="og:title"]`, "content"))
	set(&meta.Title, doc.Find("title").First().Text())
	set(&meta.Description, attrOf(doc, `meta[name="description"]`, "content"))
	set(&meta.Description, attrOf(doc, `meta[property="og:description"]`, "content"))

	for _, sel := range []struct{ selector, attr string }{
		{`meta[property="og:video"]`, "content"},
		{`meta[property="og:video:url"]`, "content"},
		{`meta[property="og:video:secure_url"]`, "content"},
		{"video[src]", "src"},
		{"video source[src]", "src"},
	} {
		if meta.PlayURL != "" {
			break
		}
		if u := normalizeMediaURL(attrOf(doc, sel.selector, sel.attr)); u != "" {
			meta.PlayURL = u
			found = true
		}
	}

	if len(meta.Tags) == 0 {
		if kw := attrOf(doc, `meta[name="keywords"]`, "content"); kw != "" {
			meta.Tags = splitKeywords(kw)
		}
	}
	return found
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return v
}

func splitKeywords(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' })
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hashtags pulls #tag tokens out of free text
func hashtags(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		tag := strings.TrimSpace(m[1])
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\n#"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// parseCount reads display counters such as "1.2w", "3.4万", "5k" or "1,024"
func parseCount(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimSuffix(s, "+")
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "亿"):
		multiplier, s = 1e8, strings.TrimSuffix(s, "亿")
	case strings.HasSuffix(s, "万"):
		multiplier, s = 1e4, strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "w"), strings.HasSuffix(s, "W"):
		multiplier, s = 1e4, s[:len(s)-1]
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		multiplier, s = 1e3, s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		multiplier, s = 1e6, s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	n := math.Round(f * multiplier)
	if n >= float64(math.MaxInt64) {
		return math.MaxInt64, true
	}
	return int64(n), true
}
