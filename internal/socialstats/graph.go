package socialstats

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// GraphOptions configures a Facebook Graph API backed source.
type GraphOptions struct {
	BaseURL     string
	AccessToken string
	// ObjectID is the Instagram business account ID or the Facebook page ID.
	ObjectID    string
	RecentPosts int
}

// Instagram reads account and media counters through the Graph API.
type Instagram struct {
	client *resty.Client
	opts   GraphOptions
}

// NewInstagram builds the Instagram source.
func NewInstagram(client *resty.Client, opts GraphOptions) *Instagram {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Instagram{client: client, opts: opts}
}

// Platform implements Source.
func (i *Instagram) Platform() string { return PlatformInstagram }

type instagramAccount struct {
	FollowersCount *int64 `json:"followers_count"`
	MediaCount     int64  `json:"media_count"`
}

type instagramMedia struct {
	Data []struct {
		LikeCount     int64  `json:"like_count"`
		CommentsCount int64  `json:"comments_count"`
		Permalink     string `json:"permalink"`
	} `json:"data"`
}

// Fetch implements Source.
func (i *Instagram) Fetch(ctx context.Context) (Snapshot, error) {
	if missing := graphMissing(i.opts, "INSTAGRAM_ACCESS_TOKEN", "INSTAGRAM_ACCOUNT_ID"); len(missing) > 0 {
		return Snapshot{}, scrape.MissingCredentials(PlatformInstagram, missing...)
	}

	var account instagramAccount
	err := getJSON(ctx, i.client, request{
		Label: "instagram account",
		URL:   i.opts.BaseURL + "/" + url.PathEscape(i.opts.ObjectID),
		Query: map[string]string{"fields": "followers_count,media_count", "access_token": i.opts.AccessToken},
	}, &account)
	if err != nil {
		return Snapshot{}, err
	}
	if account.FollowersCount == nil {
		return Snapshot{}, scrape.ParseFailed(nil, "instagram account: followers_count missing")
	}
	snap := Snapshot{Followers: *account.FollowersCount, Posts: account.MediaCount}

	var media instagramMedia
	err = getJSON(ctx, i.client, request{
		Label: "instagram media",
		URL:   i.opts.BaseURL + "/" + url.PathEscape(i.opts.ObjectID) + "/media",
		Query: map[string]string{
			"fields":       "like_count,comments_count,permalink",
			"limit":        strconv.Itoa(max(i.opts.RecentPosts, 1)),
			"access_token": i.opts.AccessToken,
		},
	}, &media)
	if err != nil {
		return snap, &partialError{err: err}
	}
	for _, m := range media.Data {
		snap.RecentPosts = append(snap.RecentPosts, Post{
			URL:      m.Permalink,
			Likes:    m.LikeCount,
			Comments: m.CommentsCount,
		})
	}
	return snap, nil
}

// Facebook reads page followers and recent post interactions through the Graph API.
type Facebook struct {
	client *resty.Client
	opts   GraphOptions
}

// NewFacebook builds the Facebook source.
func NewFacebook(client *resty.Client, opts GraphOptions) *Facebook {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Facebook{client: client, opts: opts}
}

// Platform implements Source.
func (f *Facebook) Platform() string { return PlatformFacebook }

type facebookPage struct {
	FollowersCount *int64 `json:"followers_count"`
	FanCount       *int64 `json:"fan_count"`
}

type graphSummary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type facebookPosts struct {
	Data []struct {
		PermalinkURL string `json:"permalink_url"`
		Shares       struct {
			Count int64 `json:"count"`
		} `json:"shares"`
		Reactions graphSummary `json:"reactions"`
		Comments  graphSummary `json:"comments"`
	} `json:"data"`
}

// Fetch implements Source. Posts counts the recent posts returned, since the
// Graph API exposes no lifetime post total for pages.
func (f *Facebook) Fetch(ctx context.Context) (Snapshot, error) {
	if missing := graphMissing(f.opts, "FACEBOOK_ACCESS_TOKEN", "FACEBOOK_PAGE_ID"); len(missing) > 0 {
		return Snapshot{}, scrape.MissingCredentials(PlatformFacebook, missing...)
	}

	var page facebookPage
	err := getJSON(ctx, f.client, request{
		Label: "facebook page",
		URL:   f.opts.BaseURL + "/" + url.PathEscape(f.opts.ObjectID),
		Query: map[string]string{"fields": "followers_count,fan_count", "access_token": f.opts.AccessToken},
	}, &page)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	switch {
	case page.FollowersCount != nil:
		snap.Followers = *page.FollowersCount
	case page.FanCount != nil:
		snap.Followers = *page.FanCount
	default:
		return Snapshot{}, scrape.ParseFailed(nil, "facebook page: followers_count and fan_count missing")
	}

	var posts facebookPosts
	err = getJSON(ctx, f.client, request{
		Label: "facebook posts",
		URL:   f.opts.BaseURL + "/" + url.PathEscape(f.opts.ObjectID) + "/posts",
		Query: map[string]string{
			"fields":       "permalink_url,shares,reactions.summary(true),comments.summary(true)",
			"limit":        strconv.Itoa(max(f.opts.RecentPosts, 1)),
			"access_token": f.opts.AccessToken,
		},
	}, &posts)
	if err != nil {
		return snap, &partialError{err: err}
	}
	snap.Posts = int64(len(posts.Data))
	for _, p := range posts.Data {
		snap.RecentPosts = append(snap.RecentPosts, Post{
			URL:      p.PermalinkURL,
			Likes:    p.Reactions.Summary.TotalCount,
			Comments: p.Comments.Summary.TotalCount,
			Shares:   p.Shares.Count,
		})
	}
	return snap, nil
}

func graphMissing(opts GraphOptions, tokenVar, idVar string) []string {
	var missing []string
	if opts.AccessToken == "" {
		missing = append(missing, tokenVar)
	}
	if opts.ObjectID == "" {
		missing = append(missing, idVar)
	}
	return missing
}
