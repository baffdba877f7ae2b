package infrastructure

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// rootRule locates the object holding a content item inside a JSON document.
// With each set, the children of path are scanned and the first one that
// has require (and, when set, a sub object) wins.
type rootRule struct {
	path    string
	each    bool
	sub     string
	require string
}

// fieldPaths lists gjson paths per metadata field, relative to the item root.
// The first path producing a value wins.
type fieldPaths struct {
	title       []string
	description []string
	tags        []string
	likes       []string
	comments    []string
	favorites   []string
	shares      []string
	authorName  []string
	authorID    []string
	playURL     []string
}

// platformProfile is the capability bundle of one platform
type platformProfile struct {
	platform    domain.Platform
	hosts       []string
	shortHosts  []string
	urlPatterns []*regexp.Regexp
	pathIDs     []*regexp.Regexp
	queryKeys   []string
	pageIDs     []*regexp.Regexp
	// metadataEndpoint is a format string taking the content id. Empty means
	// the canonical page is fetched directly.
	metadataEndpoint string
	referer          string
	origin           string
	cookieURLs       []string
	loginCodes       []int64
	roots            []rootRule
	fields           fieldPaths
}

// genericShortHosts redirect to any platform, so they are expanded before
// classification.
var genericShortHosts = []string{"t.cn", "dwz.cn", "b23.tv", "url.cn"}

var profiles = []*platformProfile{
	{
		platform:   domain.PlatformDouyin,
		hosts:      []string{"douyin.com", "iesdouyin.com", "amemv.com"},
		shortHosts: []string{"v.douyin.com"},
		urlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)douyin`),
		},
		pathIDs: []*regexp.Regexp{
			regexp.MustCompile(`/(?:share/)?video/([^/?#]+)`),
			regexp.MustCompile(`/(?:share/)?note/([^/?#]+)`),
		},
		queryKeys: []string{"modal_id", "item_ids", "video_id", "aweme_id"},
		pageIDs: []*regexp.Regexp{
			regexp.MustCompile(`"aweme_id"\s*:\s*"(\d+)"`),
			regexp.MustCompile(`"awemeId"\s*:\s*"(\d+)"`),
			regexp.MustCompile(`/video/(\d{8,})`),
		},
		metadataEndpoint: "https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/?item_ids=%s",
		referer:          "https://www.douyin.com/",
		origin:           "https://www.douyin.com",
		cookieURLs:       []string{"https://www.douyin.com/", "https://www.iesdouyin.com/"},
		loginCodes:       []int64{2154, 8},
		roots: []rootRule{
			{path: "item_list.0"},
			{path: "aweme_detail"},
			{path: "", each: true, sub: "aweme.detail"},
		},
		fields: fieldPaths{
			title:       []string{"desc"},
			description: []string{"desc"},
			tags:        []string{"text_extra.#.hashtag_name", "textExtra.#.hashtagName"},
			likes:       []string{"statistics.digg_count", "stats.diggCount"},
			comments:    []string{"statistics.comment_count", "stats.commentCount"},
			favorites:   []string{"statistics.collect_count", "stats.collectCount"},
			shares:      []string{"statistics.share_count", "stats.shareCount"},
			authorName:  []string{"author.nickname", "authorInfo.nickname"},
			authorID:    []string{"author.unique_id", "author.short_id", "authorInfo.uid"},
			playURL:     []string{"video.play_addr.url_list", "video.playAddr.#.src", "video.play_addr.uri"},
		},
	},
	{
		platform:   domain.PlatformXiaohongshu,
		hosts:      []string{"xiaohongshu.com", "xhscdn.com"},
		shortHosts: []string{"xhslink.com"},
		urlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)xiaohongshu|xhslink|rednote`),
		},
		pathIDs: []*regexp.Regexp{
			regexp.MustCompile(`/(?:discovery/item|explore|item)/([0-9a-zA-Z]+)`),
		},
		queryKeys: []string{"noteId", "note_id"},
		pageIDs: []*regexp.Regexp{
			regexp.MustCompile(`"noteId"\s*:\s*"([0-9a-f]{24})"`),
		},
		referer:    "https://www.xiaohongshu.com/",
		origin:     "https://www.xiaohongshu.com",
		cookieURLs: []string{"https://www.xiaohongshu.com/", "https://edith.xiaohongshu.com/"},
		loginCodes: []int64{-100, -101},
		roots: []rootRule{
			{path: "note.noteDetailMap", each: true, sub: "note"},
			{path: "note.note"},
		},
		fields: fieldPaths{
			title:       []string{"title"},
			description: []string{"desc"},
			tags:        []string{"tagList.#.name"},
			likes:       []string{"interactInfo.likedCount"},
			comments:    []string{"interactInfo.commentCount"},
			favorites:   []string{"interactInfo.collectedCount"},
			shares:      []string{"interactInfo.shareCount"},
			authorName:  []string{"user.nickname", "user.nickName"},
			authorID:    []string{"user.userId"},
			playURL:     []string{"video.media.stream.h264.0.masterUrl", "video.media.stream.h265.0.masterUrl"},
		},
	},
	{
		platform:   domain.PlatformKuaishou,
		hosts:      []string{"kuaishou.com", "gifshow.com", "chenzhongtech.com"},
		shortHosts: []string{"v.kuaishou.com"},
		urlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)kuaishou|gifshow|kwai`),
		},
		pathIDs: []*regexp.Regexp{
			regexp.MustCompile(`/(?:short-video|photo|fw/photo)/([0-9a-zA-Z_-]+)`),
		},
		queryKeys: []string{"photoId", "shareObjectId"},
		pageIDs: []*regexp.Regexp{
			regexp.MustCompile(`"photoId"\s*:\s*"([0-9a-zA-Z_-]+)"`),
		},
		referer:    "https://www.kuaishou.com/",
		origin:     "https://www.kuaishou.com",
		cookieURLs: []string{"https://www.kuaishou.com/"},
		loginCodes: []int64{109},
		roots: []rootRule{
			{path: "defaultClient", each: true, require: "photoUrl"},
			{path: "photo"},
		},
		fields: fieldPaths{
			title:       []string{"caption"},
			description: []string{"caption"},
			likes:       []string{"realLikeCount", "likeCount"},
			comments:    []string{"commentCount"},
			favorites:   []string{"collectCount"},
			shares:      []string{"shareCount"},
			authorName:  []string{"userName", "author.name"},
			authorID:    []string{"userId", "author.id"},
			playURL:     []string{"photoUrl", "mainMvUrls.0.url"},
		},
	},
	{
		platform:   domain.PlatformWeixin,
		hosts:      []string{"weixin.qq.com", "wx.qq.com", "channels.weixin.qq.com"},
		shortHosts: []string{},
		urlPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)channels\.weixin|weixin\.qq\.com/sph`),
		},
		queryKeys: []string{"vid", "object_id", "objectId", "feedId", "exportId"},
		pageIDs: []*regexp.Regexp{
			regexp.MustCompile(`"objectId"\s*:\s*"(\w+)"`),
			regexp.MustCompile(`"exportId"\s*:\s*"([\w-]+)"`),
		},
		referer:    "https://channels.weixin.qq.com/",
		origin:     "https://channels.weixin.qq.com",
		cookieURLs: []string{"https://channels.weixin.qq.com/"},
		loginCodes: []int64{300333, 300334},
		roots: []rootRule{
			{path: "data.object"},
			{path: "object"},
		},
		fields: fieldPaths{
			title:       []string{"objectDesc.description", "description"},
			description: []string{"objectDesc.description", "description"},
			tags:        []string{"objectDesc.topic.#.topic"},
			likes:       []string{"likeCount", "objectDesc.likeCount"},
			comments:    []string{"commentCount"},
			favorites:   []string{"favCount"},
			shares:      []string{"forwardCount"},
			authorName:  []string{"nickname", "contact.nickname"},
			authorID:    []string{"username", "contact.username"},
			playURL:     []string{"objectDesc.media.0.url"},
		},
	},
}

func profileFor(platform domain.Platform) (*platformProfile, error) {
	for _, p := range profiles {
		if p.platform == platform {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no profile for platform: %s", platform)
}

func hostMatches(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// classify picks the platform of a URL: host membership across all
// platforms first, then URL patterns.
func classify(u *url.URL) (*platformProfile, bool) {
	host := u.Hostname()
	for _, p := range profiles {
		if hostMatches(host, p.hosts) || hostMatches(host, p.shortHosts) {
			return p, true
		}
	}
	raw := u.String()
	for _, p := range profiles {
		for _, re := range p.urlPatterns {
			if re.MatchString(raw) {
				return p, true
			}
		}
	}
	return nil, false
}

func (p *platformProfile) isShortLink(u *url.URL) bool {
	return hostMatches(u.Hostname(), p.shortHosts)
}

// idFromURL applies the path markers then the query keys
func (p *platformProfile) idFromURL(u *url.URL) string {
	for _, re := range p.pathIDs {
		if m := re.FindStringSubmatch(u.Path); len(m) > 1 {
			return m[1]
		}
	}
	query := u.Query()
	for _, key := range p.queryKeys {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			// item_ids may carry a comma separated list
			v, _, _ = strings.Cut(v, ",")
			return v
		}
	}
	return ""
}

func (p *platformProfile) idFromPage(body []byte) string {
	for _, re := range p.pageIDs {
		if m := re.FindSubmatch(body); len(m) > 1 {
			return string(m[1])
		}
	}
	return ""
}

func (p *platformProfile) metadataURL(link domain.ResolvedLink) string {
	if p.metadataEndpoint == "" {
		return ""
	}
	return fmt.Sprintf(p.metadataEndpoint, url.QueryEscape(link.ContentID))
}

func (p *platformProfile) isLoginCode(code int64) bool {
	for _, c := range p.loginCodes {
		if c == code {
			return true
		}
	}
	return false
}
