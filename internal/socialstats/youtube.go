package socialstats

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// YouTubeOptions configures the YouTube Data API source.
type YouTubeOptions struct {
	BaseURL   string
	APIKey    string
	ChannelID string
}

// YouTube reads channel statistics through the Data API v3.
type YouTube struct {
	client *resty.Client
	opts   YouTubeOptions
}

// NewYouTube builds the YouTube source.
func NewYouTube(client *resty.Client, opts YouTubeOptions) *YouTube {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &YouTube{client: client, opts: opts}
}

// Platform implements Source.
func (y *YouTube) Platform() string { return PlatformYouTube }

// The Data API returns counts as decimal strings.
type youtubeChannels struct {
	Items []struct {
		Statistics struct {
			ViewCount             string `json:"viewCount"`
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
			VideoCount            string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Fetch implements Source.
func (y *YouTube) Fetch(ctx context.Context) (Snapshot, error) {
	var missing []string
	if y.opts.APIKey == "" {
		missing = append(missing, "YOUTUBE_API_KEY")
	}
	if y.opts.ChannelID == "" {
		missing = append(missing, "YOUTUBE_CHANNEL_ID")
	}
	if len(missing) > 0 {
		return Snapshot{}, scrape.MissingCredentials(PlatformYouTube, missing...)
	}

	var channels youtubeChannels
	err := getJSON(ctx, y.client, request{
		Label: "youtube channel statistics",
		URL:   y.opts.BaseURL + "/youtube/v3/channels",
		Query: map[string]string{"part": "statistics", "id": y.opts.ChannelID, "key": y.opts.APIKey},
	}, &channels)
	if err != nil {
		return Snapshot{}, err
	}
	if len(channels.Items) == 0 {
		return Snapshot{}, scrape.ParseFailed(nil, "youtube channel statistics: channel %s not found", y.opts.ChannelID)
	}

	stats := channels.Items[0].Statistics
	snap := Snapshot{}
	if !stats.HiddenSubscriberCount {
		if snap.Followers, err = parseCount(stats.SubscriberCount); err != nil {
			return Snapshot{}, scrape.ParseFailed(err, "youtube subscriberCount")
		}
	}
	if snap.Posts, err = parseCount(stats.VideoCount); err != nil {
		return Snapshot{}, scrape.ParseFailed(err, "youtube videoCount")
	}
	if stats.ViewCount != "" {
		views, err := parseCount(stats.ViewCount)
		if err != nil {
			return Snapshot{}, scrape.ParseFailed(err, "youtube viewCount")
		}
		snap.Views = &views
	}
	return snap, nil
}

func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
