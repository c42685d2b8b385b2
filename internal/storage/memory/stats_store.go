package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

type statsKey struct {
	platform string
	date     string
}

// StatsStore keeps social stats records keyed by (platform, date).
type StatsStore struct {
	mu      sync.RWMutex
	records map[statsKey]socialstats.Record
}

// NewStatsStore constructs an empty StatsStore.
func NewStatsStore() *StatsStore {
	return &StatsStore{records: make(map[statsKey]socialstats.Record)}
}

// UpsertRecord inserts or replaces the record for its platform and date.
func (s *StatsStore) UpsertRecord(_ context.Context, rec socialstats.Record) error {
	if _, err := socialstats.ParseDate(rec.Date); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[statsKey{platform: rec.Platform, date: rec.Date}] = rec
	return nil
}

// ListRecords returns matching records ordered by date then platform.
func (s *StatsStore) ListRecords(_ context.Context, q socialstats.HistoryQuery) ([]socialstats.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []socialstats.Record{}
	for key, rec := range s.records {
		if q.Platform != "" && key.platform != q.Platform {
			continue
		}
		// YYYY-MM-DD compares correctly as a string.
		if q.From != "" && key.date < q.From {
			continue
		}
		if q.To != "" && key.date > q.To {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Platform < out[j].Platform
	})
	return out, nil
}
