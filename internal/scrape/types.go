package scrape

import (
	"net/http"
	"time"
)

// FetchRequest describes a single outbound page fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the body and metadata of a fetched page.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	Attempts     int
}

// Event is the envelope published when a scrape or collection run completes.
type Event struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

const (
	// EventLineupScraped is published after a lineup has been parsed.
	EventLineupScraped = "lineup.scraped"
	// EventSocialStatsCollected is published after a stats collection run.
	EventSocialStatsCollected = "social_stats.collected"
)
