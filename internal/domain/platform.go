package domain

import "fmt"

// Platform identifies a supported short-video platform
type Platform string

const (
	PlatformDouyin      Platform = "douyin"
	PlatformXiaohongshu Platform = "xiaohongshu"
	PlatformKuaishou    Platform = "kuaishou"
	PlatformWeixin      Platform = "weixin" // WeChat Channels
)

// Platforms lists every supported platform in classification order.
var Platforms = []Platform{
	PlatformDouyin,
	PlatformXiaohongshu,
	PlatformKuaishou,
	PlatformWeixin,
}

// ValidatePlatform checks if a platform is supported
func ValidatePlatform(platform Platform) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// ParsePlatform converts user input into a supported platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !ValidatePlatform(p) {
		return "", fmt.Errorf("unsupported platform: %q", s)
	}
	return p, nil
}

// ResolvedLink is the normalized form of one share link.
type ResolvedLink struct {
	Platform     Platform `json:"platform"`
	ContentID    string   `json:"content_id"`
	CanonicalURL string   `json:"canonical_url"`
}

// Valid reports whether the link names a supported platform and a content id.
func (l ResolvedLink) Valid() bool {
	return ValidatePlatform(l.Platform) && l.ContentID != ""
}
