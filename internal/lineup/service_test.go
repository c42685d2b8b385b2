package lineup

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

func TestServiceScrapeStaticPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{resp: scrape.FetchResponse{URL: "https://lineups.test/match/401", StatusCode: 200, Body: loadFixture(t, "structured.html")}}
	publisher := &fakePublisher{}
	svc := newTestService(t, Options{Fetcher: fetcher, Publisher: publisher, Topic: "lineups"})

	got, err := svc.Scrape(context.Background(), "401")
	require.NoError(t, err)
	require.Equal(t, "https://lineups.test/match/401", fetcher.lastURL())
	require.Equal(t, "https://lineups.test/match/401", got.Source)
	require.Equal(t, fixedNow, got.ScrapedAt)
	require.False(t, got.Headless)
	require.Equal(t, 8, got.PlayerCount())

	require.Len(t, publisher.events, 1)
	event, ok := publisher.events[0].(scrape.Event)
	require.True(t, ok)
	require.Equal(t, scrape.EventLineupScraped, event.Type)
	require.Equal(t, "evt-1", event.ID)
	require.Equal(t, "lineups", publisher.topics[0])
}

func TestServiceScrapeEscapesMatchID(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Options{Fetcher: &fakeFetcher{}})
	require.Equal(t, "https://lineups.test/match/abc-12_3", svc.MatchURL("abc-12_3"))
}

func TestServiceScrapeRejectsBadMatchID(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	svc := newTestService(t, Options{Fetcher: fetcher})

	for _, id := range []string{"", "../etc", "a b", "x?y=1"} {
		_, err := svc.Scrape(context.Background(), id)
		require.True(t, errors.Is(err, ErrInvalidMatchID), "id %q", id)
	}
	require.Empty(t, fetcher.lastURL())
}

func TestServiceScrapePromotesToHeadless(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{resp: scrape.FetchResponse{StatusCode: 200, Body: loadFixture(t, "shell.html")}}
	rendered := &fakeFetcher{resp: scrape.FetchResponse{
		URL: "https://lineups.test/match/77", StatusCode: 200, UsedHeadless: true, Body: loadFixture(t, "attributes.html"),
	}}
	svc := newTestService(t, Options{Fetcher: static, Headless: rendered, Detector: promoteAll{}})

	got, err := svc.Scrape(context.Background(), "77")
	require.NoError(t, err)
	require.True(t, got.Headless)
	require.Equal(t, StrategyAttributes, got.Strategy)
	require.Equal(t, "https://lineups.test/match/77", rendered.lastURL())
}

func TestServiceScrapeParseFailureWritesSnapshot(t *testing.T) {
	t.Parallel()

	blobs := &fakeBlobs{}
	fetcher := &fakeFetcher{resp: scrape.FetchResponse{StatusCode: 200, Body: loadFixture(t, "shell.html")}}
	headless := &fakeFetcher{err: scrape.FetchFailed(nil, "browser unavailable")}
	svc := newTestService(t, Options{Fetcher: fetcher, Headless: headless, Blobs: blobs})

	_, err := svc.Scrape(context.Background(), "99")
	require.Error(t, err)
	require.Equal(t, scrape.KindParseFailed, scrape.KindOf(err))
	require.Equal(t, []string{"lineups/99/20250301T143000Z.html"}, blobs.paths)
	require.Contains(t, blobs.data[0], "enable JavaScript")
}

func TestServiceScrapeFetchFailure(t *testing.T) {
	t.Parallel()

	blobs := &fakeBlobs{}
	fetcher := &fakeFetcher{
		resp: scrape.FetchResponse{StatusCode: 503, Attempts: 3},
		err:  scrape.FetchFailed(nil, "unexpected status 503"),
	}
	svc := newTestService(t, Options{Fetcher: fetcher, Blobs: blobs})

	_, err := svc.Scrape(context.Background(), "12")
	require.Equal(t, scrape.KindFetchFailed, scrape.KindOf(err))
	require.Empty(t, blobs.paths)
}

func TestServicePublishFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{resp: scrape.FetchResponse{StatusCode: 200, Body: loadFixture(t, "jsonld.html")}}
	publisher := &fakePublisher{err: errors.New("topic gone")}
	svc := newTestService(t, Options{Fetcher: fetcher, Publisher: publisher, Topic: "lineups"})

	got, err := svc.Scrape(context.Background(), "5")
	require.NoError(t, err)
	require.Equal(t, StrategyJSONLD, got.Strategy)
}

func TestNewServiceValidatesOptions(t *testing.T) {
	t.Parallel()

	_, err := NewService(Options{URLTemplate: "https://x/{match_id}", Clock: fixedClock{}})
	require.Error(t, err)
	_, err = NewService(Options{Fetcher: &fakeFetcher{}, URLTemplate: "https://x/", Clock: fixedClock{}})
	require.Error(t, err)
}

var fixedNow = time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	opts.URLTemplate = "https://lineups.test/match/{match_id}"
	opts.Clock = fixedClock{}
	opts.IDs = fixedIDs{}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedNow }

type fixedIDs struct{}

func (fixedIDs) NewID() (string, error) { return "evt-1", nil }

type promoteAll struct{}

func (promoteAll) ShouldPromote(scrape.FetchResponse) bool { return true }

type fakeFetcher struct {
	mu   sync.Mutex
	resp scrape.FetchResponse
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req scrape.FetchRequest) (scrape.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, req.URL)
	return f.resp, f.err
}

func (f *fakeFetcher) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

type fakeBlobs struct {
	paths []string
	data  []string
}

func (b *fakeBlobs) PutObject(_ context.Context, path, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	b.paths = append(b.paths, path)
	b.data = append(b.data, buf.String())
	return "memory://" + path, nil
}

type fakePublisher struct {
	topics []string
	events []any
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
	return "msg-1", nil
}
