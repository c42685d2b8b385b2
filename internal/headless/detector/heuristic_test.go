package detector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

func TestHeuristic_ShouldPromote(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		threshold int
		extra     []string
		resp      scrape.FetchResponse
		want      bool
	}{
		{
			name: "empty body",
			resp: scrape.FetchResponse{StatusCode: 200, Body: []byte("  \n")},
			want: true,
		},
		{
			name: "next.js shell",
			resp: scrape.FetchResponse{StatusCode: 200, Body: []byte(`<div id="__next"></div>`)},
			want: true,
		},
		{
			name:      "script dense small page",
			threshold: 1000,
			resp:      scrape.FetchResponse{StatusCode: 200, Body: []byte(`<html><script>var a=1;</script><p>t</p></html>`)},
			want:      true,
		},
		{
			name:  "custom marker",
			extra: []string{"Lineup-Loading"},
			resp:  scrape.FetchResponse{StatusCode: 200, Body: []byte(`<div class="lineup-loading">Loading teams</div>`)},
			want:  true,
		},
		{
			name: "plain static lineup",
			resp: scrape.FetchResponse{StatusCode: 200, Body: []byte(`<table><tr><td>1</td><td>Ellis Genge</td></tr></table>`)},
			want: false,
		},
		{
			name: "non 200",
			resp: scrape.FetchResponse{StatusCode: 404, Body: []byte("not found")},
			want: false,
		},
		{
			name: "already rendered",
			resp: scrape.FetchResponse{StatusCode: 200, UsedHeadless: true},
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := NewHeuristic(tc.threshold, tc.extra...)
			require.Equal(t, tc.want, h.ShouldPromote(tc.resp))
		})
	}
}

func TestNewHeuristicDefaultsThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultThreshold, NewHeuristic(0).BodyLengthThreshold)
}
