package lineup

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/metrics"
	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// ErrInvalidMatchID is returned for empty or malformed match identifiers.
var ErrInvalidMatchID = errors.New("invalid match id")

var matchIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

const matchPlaceholder = "{match_id}"

// Options wires the Service's collaborators. Headless, Detector, Blobs and
// Publisher are optional.
type Options struct {
	URLTemplate string
	Fetcher     scrape.Fetcher
	Headless    scrape.Fetcher
	Detector    scrape.HeadlessDetector
	Blobs       scrape.BlobStore
	Publisher   scrape.Publisher
	Topic       string
	Clock       scrape.Clock
	IDs         scrape.IDGenerator
	Logger      *zap.Logger
}

// Service fetches and parses match lineups.
type Service struct {
	opts   Options
	logger *zap.Logger
}

// NewService validates options and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("lineup: fetcher is required")
	}
	if !strings.Contains(opts.URLTemplate, matchPlaceholder) {
		return nil, errors.Newf("lineup: url template %q lacks %s", opts.URLTemplate, matchPlaceholder)
	}
	if opts.Clock == nil {
		return nil, errors.New("lineup: clock is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{opts: opts, logger: logger.Named("lineup")}, nil
}

// ValidateMatchID reports whether id is usable in a lineup URL.
func ValidateMatchID(id string) error {
	if !matchIDRe.MatchString(id) {
		return errors.Wrapf(ErrInvalidMatchID, "%q", id)
	}
	return nil
}

// MatchURL renders the lineup page URL for a match.
func (s *Service) MatchURL(matchID string) string {
	return strings.ReplaceAll(s.opts.URLTemplate, matchPlaceholder, url.PathEscape(matchID))
}

// Scrape fetches the lineup page for matchID and parses it. When the static
// page cannot be parsed and looks client-rendered, it retries through the
// headless fetcher.
func (s *Service) Scrape(ctx context.Context, matchID string) (Lineup, error) {
	if err := ValidateMatchID(matchID); err != nil {
		return Lineup{}, err
	}
	target := s.MatchURL(matchID)
	logger := s.logger.With(zap.String("match_id", matchID), zap.String("url", target))

	resp, err := s.opts.Fetcher.Fetch(ctx, scrape.FetchRequest{URL: target})
	if err != nil {
		logger.Warn("lineup fetch failed", zap.Error(err), zap.Int("attempts", resp.Attempts))
		metrics.ObserveLineupScrape("", string(scrape.KindOf(err)))
		return Lineup{}, err
	}

	lineup, err := Parse(matchID, resp.Body)
	if err != nil && s.shouldPromote(resp) {
		logger.Info("promoting lineup page to headless")
		rendered, herr := s.opts.Headless.Fetch(ctx, scrape.FetchRequest{URL: target})
		if herr != nil {
			logger.Warn("headless render failed", zap.Error(herr))
		} else {
			resp = rendered
			lineup, err = Parse(matchID, resp.Body)
		}
	}
	if err != nil {
		logger.Warn("lineup parse failed", zap.Error(err), zap.Int("bytes", len(resp.Body)))
		s.snapshot(ctx, logger, matchID, resp.Body)
		metrics.ObserveLineupScrape("", string(scrape.KindOf(err)))
		return Lineup{}, err
	}

	lineup.Source = resp.URL
	if lineup.Source == "" {
		lineup.Source = target
	}
	lineup.Headless = resp.UsedHeadless
	lineup.ScrapedAt = s.opts.Clock.Now().UTC()
	metrics.ObserveLineupScrape(string(lineup.Strategy), "success")
	logger.Info("lineup scraped",
		zap.String("strategy", string(lineup.Strategy)),
		zap.Int("players", lineup.PlayerCount()),
		zap.Bool("headless", lineup.Headless),
	)

	s.publish(ctx, logger, lineup)
	return lineup, nil
}

func (s *Service) shouldPromote(resp scrape.FetchResponse) bool {
	if s.opts.Headless == nil || resp.UsedHeadless {
		return false
	}
	if s.opts.Detector == nil {
		return true
	}
	return s.opts.Detector.ShouldPromote(resp)
}

func (s *Service) snapshot(ctx context.Context, logger *zap.Logger, matchID string, body []byte) {
	if s.opts.Blobs == nil || len(body) == 0 {
		return
	}
	path := SnapshotPath(matchID, s.opts.Clock.Now())
	uri, err := s.opts.Blobs.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		logger.Warn("failed to store lineup snapshot", zap.Error(err))
		return
	}
	logger.Info("stored lineup snapshot", zap.String("uri", uri))
}

// SnapshotPath is the blob path for a failed page capture.
func SnapshotPath(matchID string, at time.Time) string {
	return fmt.Sprintf("lineups/%s/%s.html", matchID, at.UTC().Format("20060102T150405Z"))
}

func (s *Service) publish(ctx context.Context, logger *zap.Logger, lineup Lineup) {
	if s.opts.Publisher == nil || s.opts.Topic == "" {
		return
	}
	event := scrape.Event{
		Type:       scrape.EventLineupScraped,
		OccurredAt: lineup.ScrapedAt,
		Payload:    lineup,
	}
	if s.opts.IDs != nil {
		id, err := s.opts.IDs.NewID()
		if err != nil {
			logger.Warn("failed to generate event id", zap.Error(err))
		}
		event.ID = id
	}
	msgID, err := s.opts.Publisher.Publish(ctx, s.opts.Topic, event)
	if err != nil {
		logger.Warn("failed to publish lineup event", zap.Error(err))
		return
	}
	logger.Debug("published lineup event", zap.String("message_id", msgID))
}
