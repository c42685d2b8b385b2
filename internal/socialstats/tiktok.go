package socialstats

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// TikTokOptions configures the TikTok profile scraper.
type TikTokOptions struct {
	BaseURL  string
	Username string
}

// TikTok scrapes the public profile page; there is no API credential.
type TikTok struct {
	pages scrape.Fetcher
	opts  TikTokOptions
}

// NewTikTok builds the TikTok source on top of a page fetcher.
func NewTikTok(pages scrape.Fetcher, opts TikTokOptions) *TikTok {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.Username = strings.TrimPrefix(opts.Username, "@")
	return &TikTok{pages: pages, opts: opts}
}

// Platform implements Source.
func (t *TikTok) Platform() string { return PlatformTikTok }

type tiktokStats struct {
	FollowerCount *int64 `json:"followerCount"`
	HeartCount    *int64 `json:"heartCount"`
	VideoCount    *int64 `json:"videoCount"`
}

type tiktokRehydration struct {
	DefaultScope struct {
		UserDetail struct {
			UserInfo struct {
				Stats tiktokStats `json:"stats"`
			} `json:"userInfo"`
		} `json:"webapp.user-detail"`
	} `json:"__DEFAULT_SCOPE__"`
}

var tiktokCountRes = map[string]*regexp.Regexp{
	"followerCount": regexp.MustCompile(`"followerCount"\s*:\s*(\d+)`),
	"heartCount":    regexp.MustCompile(`"heart(?:Count)?"\s*:\s*(\d+)`),
	"videoCount":    regexp.MustCompile(`"videoCount"\s*:\s*(\d+)`),
}

// Fetch implements Source.
func (t *TikTok) Fetch(ctx context.Context) (Snapshot, error) {
	if t.opts.Username == "" {
		return Snapshot{}, scrape.MissingCredentials(PlatformTikTok, "TIKTOK_USERNAME")
	}
	profileURL := t.opts.BaseURL + "/@" + url.PathEscape(t.opts.Username)
	resp, err := t.pages.Fetch(ctx, scrape.FetchRequest{URL: profileURL})
	if err != nil {
		return Snapshot{}, err
	}

	stats, ok := tiktokStatsFromScript(resp.Body)
	if !ok {
		stats = tiktokStatsFromMarkup(resp.Body)
	}
	if stats.FollowerCount == nil {
		return Snapshot{}, scrape.ParseFailed(nil, "tiktok profile %s: follower count not found", t.opts.Username)
	}

	snap := Snapshot{Followers: *stats.FollowerCount, Likes: stats.HeartCount}
	if stats.VideoCount != nil {
		snap.Posts = *stats.VideoCount
	}
	return snap, nil
}

func tiktokStatsFromScript(body []byte) (tiktokStats, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return tiktokStats{}, false
	}
	blob := strings.TrimSpace(doc.Find("script#__UNIVERSAL_DATA_FOR_REHYDRATION__").First().Text())
	if blob == "" {
		return tiktokStats{}, false
	}
	var data tiktokRehydration
	if err := sonic.UnmarshalString(blob, &data); err != nil {
		return tiktokStats{}, false
	}
	stats := data.DefaultScope.UserDetail.UserInfo.Stats
	return stats, stats.FollowerCount != nil
}

func tiktokStatsFromMarkup(body []byte) tiktokStats {
	find := func(key string) *int64 {
		m := tiktokCountRes[key].FindSubmatch(body)
		if m == nil {
			return nil
		}
		n, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err != nil {
			return nil
		}
		return &n
	}
	return tiktokStats{
		FollowerCount: find("followerCount"),
		HeartCount:    find("heartCount"),
		VideoCount:    find("videoCount"),
	}
}
