package socialstats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

func testClient() *resty.Client {
	return NewRestClient(ClientConfig{UserAgent: "ovalsync-test", Timeout: 5 * time.Second, MaxAttempts: 2})
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestTwitterFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/ovalclub", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "public_metrics", r.URL.Query().Get("user.fields"))
		writeJSON(w, `{"data":{"id":"42","username":"ovalclub","public_metrics":{"followers_count":1000,"tweet_count":350}}}`)
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "5", r.URL.Query().Get("max_results"))
		writeJSON(w, `{"data":[
			{"id":"1","public_metrics":{"like_count":10,"reply_count":2,"retweet_count":3,"quote_count":1,"impression_count":500}},
			{"id":"2","public_metrics":{"like_count":40,"reply_count":5,"retweet_count":4,"quote_count":0,"impression_count":900}}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	src := NewTwitter(testClient(), TwitterOptions{
		BaseURL:     srv.URL + "/",
		BearerToken: "secret",
		Username:    "ovalclub",
		RecentPosts: 2,
	})
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1000), snap.Followers)
	require.Equal(t, int64(350), snap.Posts)
	require.Len(t, snap.RecentPosts, 2)
	require.Equal(t, Post{URL: "https://x.com/ovalclub/status/2", Likes: 40, Comments: 5, Shares: 4, Views: 900}, snap.RecentPosts[1])
}

func TestTwitterRecentPostsFailureKeepsProfile(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/ovalclub", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"data":{"id":"42","username":"ovalclub","public_metrics":{"followers_count":1000,"tweet_count":350}}}`)
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	src := NewTwitter(testClient(), TwitterOptions{BaseURL: srv.URL, BearerToken: "secret", Username: "ovalclub"})
	snap, err := src.Fetch(context.Background())
	require.Error(t, err)

	var partial *partialError
	require.True(t, errors.As(err, &partial))
	require.Equal(t, scrape.KindFetchFailed, scrape.KindOf(err))
	require.Equal(t, int64(1000), snap.Followers)
	require.Empty(t, snap.RecentPosts)
}

func TestSourcesReportMissingCredentialsWithoutCalling(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	client := testClient()

	tests := []struct {
		name    string
		source  Source
		missing string
	}{
		{"twitter", NewTwitter(client, TwitterOptions{BaseURL: srv.URL, Username: "club"}), "TWITTER_BEARER_TOKEN"},
		{"instagram", NewInstagram(client, GraphOptions{BaseURL: srv.URL, AccessToken: "tok"}), "INSTAGRAM_ACCOUNT_ID"},
		{"facebook", NewFacebook(client, GraphOptions{BaseURL: srv.URL}), "FACEBOOK_ACCESS_TOKEN, FACEBOOK_PAGE_ID"},
		{"youtube", NewYouTube(client, YouTubeOptions{BaseURL: srv.URL, ChannelID: "UC1"}), "YOUTUBE_API_KEY"},
		{"tiktok", NewTikTok(&pageFetcher{}, TikTokOptions{BaseURL: srv.URL}), "TIKTOK_USERNAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.source.Fetch(context.Background())
			require.Error(t, err)
			require.Equal(t, scrape.KindMissingCredentials, scrape.KindOf(err))
			require.Contains(t, err.Error(), tt.missing)
		})
	}
	require.Zero(t, calls.Load())
}

func TestInstagramFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/17841", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.URL.Query().Get("access_token"))
		writeJSON(w, `{"followers_count":2500,"media_count":120,"id":"17841"}`)
	})
	mux.HandleFunc("/17841/media", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "3", r.URL.Query().Get("limit"))
		writeJSON(w, `{"data":[
			{"like_count":100,"comments_count":10,"permalink":"https://instagram.com/p/a"},
			{"like_count":300,"comments_count":20,"permalink":"https://instagram.com/p/b"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	src := NewInstagram(testClient(), GraphOptions{BaseURL: srv.URL, AccessToken: "tok", ObjectID: "17841", RecentPosts: 3})
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2500), snap.Followers)
	require.Equal(t, int64(120), snap.Posts)
	require.Equal(t, []Post{
		{URL: "https://instagram.com/p/a", Likes: 100, Comments: 10},
		{URL: "https://instagram.com/p/b", Likes: 300, Comments: 20},
	}, snap.RecentPosts)
}

func TestInstagramMissingFollowersIsParseFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"media_count":3}`)
	}))
	t.Cleanup(srv.Close)

	src := NewInstagram(testClient(), GraphOptions{BaseURL: srv.URL, AccessToken: "tok", ObjectID: "1"})
	_, err := src.Fetch(context.Background())
	require.Equal(t, scrape.KindParseFailed, scrape.KindOf(err))
}

func TestFacebookFetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		page      string
		followers int64
	}{
		{"followers count", `{"followers_count":900,"fan_count":800}`, 900},
		{"fan count fallback", `{"fan_count":800}`, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("/page1", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.page)
			})
			mux.HandleFunc("/page1/posts", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, `{"data":[
					{"permalink_url":"https://facebook.com/1","shares":{"count":4},"reactions":{"summary":{"total_count":50}},"comments":{"summary":{"total_count":6}}},
					{"permalink_url":"https://facebook.com/2","reactions":{"summary":{"total_count":5}},"comments":{"summary":{"total_count":1}}}
				]}`)
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			src := NewFacebook(testClient(), GraphOptions{BaseURL: srv.URL, AccessToken: "tok", ObjectID: "page1", RecentPosts: 5})
			snap, err := src.Fetch(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.followers, snap.Followers)
			require.Equal(t, int64(2), snap.Posts)
			require.Equal(t, Post{URL: "https://facebook.com/1", Likes: 50, Comments: 6, Shares: 4}, snap.RecentPosts[0])
		})
	}
}

func TestFacebookPostsFailureKeepsPageCounters(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"followers_count":900}`)
	})
	mux.HandleFunc("/page1/posts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	src := NewFacebook(testClient(), GraphOptions{BaseURL: srv.URL, AccessToken: "tok", ObjectID: "page1", RecentPosts: 5})
	snap, err := src.Fetch(context.Background())
	require.Error(t, err)

	var partial *partialError
	require.True(t, errors.As(err, &partial))
	require.Equal(t, scrape.KindFetchFailed, scrape.KindOf(err))
	require.Equal(t, int64(900), snap.Followers)
	require.Zero(t, snap.Posts)
	require.Nil(t, snap.RecentPosts)
}

func TestYouTubeFetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		followers int64
		views     int64
		kind      scrape.Kind
	}{
		{
			name:      "statistics",
			body:      `{"items":[{"statistics":{"viewCount":"123456","subscriberCount":"789","hiddenSubscriberCount":false,"videoCount":"42"}}]}`,
			followers: 789,
			views:     123456,
		},
		{
			name:  "hidden subscribers",
			body:  `{"items":[{"statistics":{"viewCount":"10","subscriberCount":"0","hiddenSubscriberCount":true,"videoCount":"1"}}]}`,
			views: 10,
		},
		{name: "unknown channel", body: `{"items":[]}`, kind: scrape.KindParseFailed},
		{name: "bad count", body: `{"items":[{"statistics":{"subscriberCount":"lots","videoCount":"1"}}]}`, kind: scrape.KindParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/youtube/v3/channels", r.URL.Path)
				require.Equal(t, "statistics", r.URL.Query().Get("part"))
				require.Equal(t, "UC1", r.URL.Query().Get("id"))
				writeJSON(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			src := NewYouTube(testClient(), YouTubeOptions{BaseURL: srv.URL, APIKey: "key", ChannelID: "UC1"})
			snap, err := src.Fetch(context.Background())
			if tt.kind != "" {
				require.Equal(t, tt.kind, scrape.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.followers, snap.Followers)
			require.NotNil(t, snap.Views)
			require.Equal(t, tt.views, *snap.Views)
			require.Empty(t, snap.RecentPosts)
		})
	}
}

func TestRestClientRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	limiter := &countingLimiter{}
	client := NewRestClient(ClientConfig{Timeout: 5 * time.Second, MaxAttempts: 3, BackoffStep: time.Millisecond, Limiter: limiter})

	var out struct {
		OK bool `json:"ok"`
	}
	err := getJSON(context.Background(), client, request{Label: "test endpoint", URL: srv.URL}, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, int32(3), limiter.calls.Load())
}

func TestRestClientDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client := NewRestClient(ClientConfig{MaxAttempts: 3})
	err := getJSON(context.Background(), client, request{Label: "test endpoint", URL: srv.URL + "?access_token=secret"}, &struct{}{})
	require.Equal(t, scrape.KindFetchFailed, scrape.KindOf(err))
	require.NotContains(t, err.Error(), "secret")
	require.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorsOmitCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewRestClient(ClientConfig{Timeout: time.Second, MaxAttempts: 1})
	tests := []struct {
		name   string
		source Source
		secret string
	}{
		{
			name:   "instagram access token",
			source: NewInstagram(client, GraphOptions{BaseURL: base, AccessToken: "SUPERSECRET", ObjectID: "1"}),
			secret: "SUPERSECRET",
		},
		{
			name:   "youtube api key",
			source: NewYouTube(client, YouTubeOptions{BaseURL: base, APIKey: "YTSECRETKEY", ChannelID: "UC1"}),
			secret: "YTSECRETKEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.source.Fetch(context.Background())
			require.Equal(t, scrape.KindFetchFailed, scrape.KindOf(err))
			require.NotContains(t, err.Error(), tt.secret)
			require.NotContains(t, err.Error(), base)
		})
	}
}

func TestGetJSONMalformedBodyIsParseFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"data":`)
	}))
	t.Cleanup(srv.Close)

	err := getJSON(context.Background(), NewRestClient(ClientConfig{}), request{Label: "test endpoint", URL: srv.URL}, &struct{}{})
	require.Equal(t, scrape.KindParseFailed, scrape.KindOf(err))
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return nil
}
