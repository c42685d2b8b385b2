package socialstats

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// TwitterOptions configures the X/Twitter API v2 source.
type TwitterOptions struct {
	BaseURL     string
	BearerToken string
	Username    string
	RecentPosts int
}

// Twitter reads public metrics for an account through the v2 API.
type Twitter struct {
	client *resty.Client
	opts   TwitterOptions
}

// NewTwitter builds the Twitter source.
func NewTwitter(client *resty.Client, opts TwitterOptions) *Twitter {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Twitter{client: client, opts: opts}
}

// Platform implements Source.
func (t *Twitter) Platform() string { return PlatformTwitter }

type twitterUserResponse struct {
	Data *struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		PublicMetrics struct {
			FollowersCount int64 `json:"followers_count"`
			TweetCount     int64 `json:"tweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

type twitterTweetsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		PublicMetrics struct {
			LikeCount       int64 `json:"like_count"`
			ReplyCount      int64 `json:"reply_count"`
			RetweetCount    int64 `json:"retweet_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Fetch implements Source.
func (t *Twitter) Fetch(ctx context.Context) (Snapshot, error) {
	var missing []string
	if t.opts.BearerToken == "" {
		missing = append(missing, "TWITTER_BEARER_TOKEN")
	}
	if t.opts.Username == "" {
		missing = append(missing, "TWITTER_USERNAME")
	}
	if len(missing) > 0 {
		return Snapshot{}, scrape.MissingCredentials(PlatformTwitter, missing...)
	}

	var user twitterUserResponse
	err := getJSON(ctx, t.client, request{
		Label:  "twitter user lookup",
		URL:    t.opts.BaseURL + "/2/users/by/username/" + url.PathEscape(t.opts.Username),
		Query:  map[string]string{"user.fields": "public_metrics"},
		Bearer: t.opts.BearerToken,
	}, &user)
	if err != nil {
		return Snapshot{}, err
	}
	if user.Data == nil || user.Data.ID == "" {
		return Snapshot{}, scrape.ParseFailed(nil, "twitter user lookup: no user in response")
	}

	snap := Snapshot{
		Followers: user.Data.PublicMetrics.FollowersCount,
		Posts:     user.Data.PublicMetrics.TweetCount,
	}

	var tweets twitterTweetsResponse
	err = getJSON(ctx, t.client, request{
		Label: "twitter recent tweets",
		URL:   t.opts.BaseURL + "/2/users/" + url.PathEscape(user.Data.ID) + "/tweets",
		Query: map[string]string{
			"max_results":  strconv.Itoa(clamp(t.opts.RecentPosts, 5, 100)),
			"tweet.fields": "public_metrics",
		},
		Bearer: t.opts.BearerToken,
	}, &tweets)
	if err != nil {
		return snap, &partialError{err: err}
	}
	for _, tw := range tweets.Data {
		m := tw.PublicMetrics
		snap.RecentPosts = append(snap.RecentPosts, Post{
			URL:      fmt.Sprintf("https://x.com/%s/status/%s", user.Data.Username, tw.ID),
			Likes:    m.LikeCount,
			Comments: m.ReplyCount,
			Shares:   m.RetweetCount + m.QuoteCount,
			Views:    m.ImpressionCount,
		})
	}
	return snap, nil
}

func clamp(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
