package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

func newOfflineResolver() (*PlatformResolver, *offlineTransport) {
	transport := &offlineTransport{}
	sessions := NewSessionManager(testConfig(), zap.NewNop(), WithTransport(transport))
	return NewPlatformResolver(sessions, zap.NewNop()), transport
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "douyin share text",
			text: "4.35 Rxf:/ 主图多放一个元素 # 电商主图  https://v.douyin.com/i5rSM7Y7/ 复制此链接，打开Dou音搜索，直接观看视频！",
			want: "https://v.douyin.com/i5rSM7Y7/",
			ok:   true,
		},
		{
			name: "glued to CJK text",
			text: "看这个https://www.xiaohongshu.com/explore/64a1b2c3d4e5f6a7b8c9d0e1复制后打开",
			want: "https://www.xiaohongshu.com/explore/64a1b2c3d4e5f6a7b8c9d0e1",
			ok:   true,
		},
		{
			name: "trailing punctuation",
			text: "see (https://www.kuaishou.com/short-video/3xabc).",
			want: "https://www.kuaishou.com/short-video/3xabc",
			ok:   true,
		},
		{
			name: "no url",
			text: "复制此链接，打开抖音搜索",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractURL(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_NoURL(t *testing.T) {
	resolver, transport := newOfflineResolver()

	link, err := resolver.Resolve(context.Background(), "just some words 没有链接")

	assert.Nil(t, link)
	assert.ErrorIs(t, err, domain.ErrNoURLFound)
	assert.Zero(t, transport.calls.Load())
}

func TestResolve_UnknownPlatform(t *testing.T) {
	resolver, transport := newOfflineResolver()

	_, err := resolver.Resolve(context.Background(), "watch https://www.example.com/watch?v=1")

	assert.ErrorIs(t, err, domain.ErrUnknownPlatform)
	assert.Zero(t, transport.calls.Load())
}

func TestResolve_IDFromURLWithoutNetwork(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		platform domain.Platform
		id       string
	}{
		{"douyin path", "https://www.douyin.com/video/7301234567890", domain.PlatformDouyin, "7301234567890"},
		{"douyin alphanumeric path", "https://www.douyin.com/video/749201xyz", domain.PlatformDouyin, "749201xyz"},
		{"douyin note path", "https://www.douyin.com/note/7302abc?enter=feed", domain.PlatformDouyin, "7302abc"},
		{"douyin modal query", "https://www.douyin.com/discover?modal_id=7305550001", domain.PlatformDouyin, "7305550001"},
		{"douyin item_ids list", "https://www.iesdouyin.com/web/api?item_ids=111,222", domain.PlatformDouyin, "111"},
		{"xiaohongshu explore", "笔记 https://www.xiaohongshu.com/explore/64a1b2c3d4e5f6a7b8c9d0e1", domain.PlatformXiaohongshu, "64a1b2c3d4e5f6a7b8c9d0e1"},
		{"xiaohongshu discovery", "https://www.xiaohongshu.com/discovery/item/64a1b2c3d4e5f6a7b8c9d0e2?xsec=1", domain.PlatformXiaohongshu, "64a1b2c3d4e5f6a7b8c9d0e2"},
		{"kuaishou short video", "https://www.kuaishou.com/short-video/3xq9nd8kz2", domain.PlatformKuaishou, "3xq9nd8kz2"},
		{"kuaishou gifshow", "https://m.gifshow.com/fw/photo/5230000111", domain.PlatformKuaishou, "5230000111"},
		{"weixin channels query", "视频号 https://channels.weixin.qq.com/web/pages/feed?vid=export_abc123", domain.PlatformWeixin, "export_abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, transport := newOfflineResolver()

			link, err := resolver.Resolve(context.Background(), tt.text)

			require.NoError(t, err)
			assert.Equal(t, tt.platform, link.Platform)
			assert.Equal(t, tt.id, link.ContentID)
			assert.True(t, link.Valid())
			assert.Zero(t, transport.calls.Load(), "resolution should not touch the network")
		})
	}
}

func TestResolve_ShortLinkMatchesCanonical(t *testing.T) {
	canonical := "https://www.douyin.com/video/7301234567890?previous_page=app_code_link"
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "v.douyin.com":
			http.Redirect(w, r, canonical, http.StatusFound)
		default:
			fmt.Fprint(w, "<html><title>video</title></html>")
		}
	})
	sessions, rw := newRewritingSessions(t, testConfig(), mux)
	resolver := NewPlatformResolver(sessions, zap.NewNop())

	short, err := resolver.Resolve(context.Background(), "复制打开 https://v.douyin.com/i5rSM7Y7/ 看看")
	require.NoError(t, err)
	callsForShort := rw.calls.Load()

	direct, err := resolver.Resolve(context.Background(), canonical)
	require.NoError(t, err)

	assert.Equal(t, *direct, *short)
	assert.Equal(t, "7301234567890", short.ContentID)
	assert.Equal(t, canonical, short.CanonicalURL)
	assert.Equal(t, int32(2), callsForShort, "one redirect hop plus the target")
	assert.Equal(t, callsForShort, rw.calls.Load(), "canonical URL resolves offline")
}

func TestResolve_GenericShortenerClassifiesTarget(t *testing.T) {
	var referer string
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host == "t.cn" {
			referer = r.Header.Get("Referer")
			http.Redirect(w, r, "https://www.kuaishou.com/short-video/3xshort", http.StatusMovedPermanently)
			return
		}
		fmt.Fprint(w, "ok")
	})
	sessions, _ := newRewritingSessions(t, testConfig(), mux)
	resolver := NewPlatformResolver(sessions, zap.NewNop())

	link, err := resolver.Resolve(context.Background(), "https://t.cn/A6abcd")

	require.NoError(t, err)
	assert.Equal(t, domain.PlatformKuaishou, link.Platform)
	assert.Equal(t, "3xshort", link.ContentID)

	// expansion goes through the platform-neutral session
	assert.Empty(t, referer)
	assert.NotNil(t, sessions.redirector)
	assert.NotContains(t, sessions.sessions, domain.PlatformDouyin)
}

func TestResolve_ShortLinkToAlphanumericID(t *testing.T) {
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "v.douyin.com":
			http.Redirect(w, r, "https://www.douyin.com/video/749201xyz", http.StatusFound)
		default:
			fmt.Fprint(w, "<html><title>video</title></html>")
		}
	})
	sessions, _ := newRewritingSessions(t, testConfig(), mux)
	resolver := NewPlatformResolver(sessions, zap.NewNop())

	link, err := resolver.Resolve(context.Background(), "check this out https://v.douyin.com/abc123/ nice")

	require.NoError(t, err)
	assert.Equal(t, domain.PlatformDouyin, link.Platform)
	assert.Equal(t, "749201xyz", link.ContentID)
	assert.Equal(t, "https://www.douyin.com/video/749201xyz", link.CanonicalURL)
}

func TestResolve_IDFromPage(t *testing.T) {
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>window.data = {"aweme_id":"7309999000111","desc":"x"}</script>`)
	})
	sessions, rw := newRewritingSessions(t, testConfig(), mux)
	resolver := NewPlatformResolver(sessions, zap.NewNop())

	link, err := resolver.Resolve(context.Background(), "https://www.douyin.com/discover")

	require.NoError(t, err)
	assert.Equal(t, "7309999000111", link.ContentID)
	assert.Equal(t, int32(1), rw.calls.Load())
}

func TestResolve_IDNotFound(t *testing.T) {
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>nothing to see</html>")
	})
	sessions, _ := newRewritingSessions(t, testConfig(), mux)
	resolver := NewPlatformResolver(sessions, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "https://www.kuaishou.com/profile/someone")

	assert.ErrorIs(t, err, domain.ErrIDNotFound)
}

func TestResolve_RedirectLoopIsBounded(t *testing.T) {
	hops := 0
	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("https://v.douyin.com/loop%d/", hops), http.StatusFound)
	})
	config := testConfig()
	sessions, _ := newRewritingSessions(t, config, mux)
	resolver := NewPlatformResolver(sessions, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "https://v.douyin.com/start/")

	assert.ErrorIs(t, err, domain.ErrIDNotFound)
	// the redirect call and the page fetch each stop after the hop bound
	assert.LessOrEqual(t, hops, 2*(config.Fetch.MaxRedirects+1))
}

func TestResolveAll_CollectsPerLineErrors(t *testing.T) {
	resolver, _ := newOfflineResolver()

	links, errs := resolver.ResolveAll(context.Background(), []string{
		"https://www.douyin.com/video/1",
		"",
		"no link",
		"https://www.kuaishou.com/short-video/abc",
	})

	require.Len(t, links, 2)
	assert.Equal(t, "1", links[0].ContentID)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[2], domain.ErrNoURLFound)
}
