package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://ESPN.co.uk/rugby", "espn.co.uk"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchTotal == nil || lineupScrapesTotal == nil || socialFetchTotal == nil ||
		statsUpsertsTotal == nil || httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveFetchCountsAttempts(t *testing.T) {
	ObserveFetch("https://lineups.test/match/1", "200", 3)

	if val := testutil.ToFloat64(fetchTotal.WithLabelValues("lineups.test", "200")); val != 1 {
		t.Errorf("expected one fetch for lineups.test, got %f", val)
	}
	if val := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("lineups.test")); val != 3 {
		t.Errorf("expected three attempts for lineups.test, got %f", val)
	}
}

func TestObserveLineupScrapeDefaultsStrategy(t *testing.T) {
	ObserveLineupScrape("", "empty")

	if val := testutil.ToFloat64(lineupScrapesTotal.WithLabelValues("none", "empty")); val != 1 {
		t.Errorf("expected empty scrape under strategy none, got %f", val)
	}
}

func TestObserveSocialFetchAndUpsert(t *testing.T) {
	ObserveSocialFetch("youtube", "success")
	ObserveStatsUpsert("success")

	if val := testutil.ToFloat64(socialFetchTotal.WithLabelValues("youtube", "success")); val != 1 {
		t.Errorf("expected one youtube fetch, got %f", val)
	}
	if val := testutil.ToFloat64(statsUpsertsTotal.WithLabelValues("success")); val != 1 {
		t.Errorf("expected one upsert, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
