package socialstats

import (
	"context"
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/metrics"
	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

var (
	// ErrInvalidOptions is returned for malformed dates or unknown platforms.
	ErrInvalidOptions = errors.New("invalid collection options")
	// ErrStoreUnavailable is returned when persistence is requested without a database.
	ErrStoreUnavailable = errors.New("stats store not configured")
)

// StatsStore persists records keyed by (platform, date).
type StatsStore interface {
	UpsertRecord(ctx context.Context, rec Record) error
	ListRecords(ctx context.Context, q HistoryQuery) ([]Record, error)
}

// partialError reports that a source's secondary call failed. The snapshot
// returned with it still carries the profile counters.
type partialError struct {
	err error
}

func (e *partialError) Error() string { return "recent posts: " + e.err.Error() }
func (e *partialError) Unwrap() error { return e.err }

// CollectorOptions wires a Collector. Store and Publisher are optional.
type CollectorOptions struct {
	Sources   []Source
	Store     StatsStore
	Publisher scrape.Publisher
	Topic     string
	Clock     scrape.Clock
	IDs       scrape.IDGenerator
	Logger    *zap.Logger
}

// CollectOptions selects what a run collects. Empty Date means today (UTC);
// empty Platforms means every configured source.
type CollectOptions struct {
	Date      string
	Platforms []string
	Persist   bool
}

// Collector runs sources sequentially and assembles a Report.
type Collector struct {
	opts   CollectorOptions
	logger *zap.Logger
}

// NewCollector builds a Collector.
func NewCollector(opts CollectorOptions) (*Collector, error) {
	if opts.Clock == nil || opts.IDs == nil {
		return nil, errors.New("socialstats: clock and id generator are required")
	}
	seen := make(map[string]bool, len(opts.Sources))
	for _, src := range opts.Sources {
		if seen[src.Platform()] {
			return nil, errors.Newf("socialstats: duplicate source %q", src.Platform())
		}
		seen[src.Platform()] = true
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{opts: opts, logger: logger.Named("socialstats")}, nil
}

// Platforms lists the configured platforms in run order.
func (c *Collector) Platforms() []string {
	out := make([]string, 0, len(c.opts.Sources))
	for _, src := range c.opts.Sources {
		out = append(out, src.Platform())
	}
	return out
}

// Collect fetches every selected platform in order. Platform failures end up
// in Report.Failures; only invalid options or a missing store return an error.
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) (Report, error) {
	date := opts.Date
	if date == "" {
		date = c.opts.Clock.Now().UTC().Format(DateLayout)
	} else if _, err := ParseDate(date); err != nil {
		return Report{}, err
	}
	sources, err := c.selectSources(opts.Platforms)
	if err != nil {
		return Report{}, err
	}
	if opts.Persist && c.opts.Store == nil {
		return Report{}, ErrStoreUnavailable
	}
	runID, err := c.opts.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}

	report := Report{
		RunID:    runID,
		Date:     date,
		Records:  []Record{},
		Failures: []Failure{},
	}
	logger := c.logger.With(zap.String("run_id", runID), zap.String("date", date))

	for _, src := range sources {
		platform := src.Platform()
		rec, err := c.collectOne(ctx, logger, src, date)
		if err != nil {
			kind := scrape.KindOf(err)
			logger.Warn("platform collection failed",
				zap.String("platform", platform),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			metrics.ObserveSocialFetch(platform, string(kind))
			report.Failures = append(report.Failures, Failure{Platform: platform, Kind: kind, Error: err.Error()})
			continue
		}
		metrics.ObserveSocialFetch(platform, "success")

		if opts.Persist {
			if err := c.opts.Store.UpsertRecord(ctx, rec); err != nil {
				logger.Error("failed to persist record", zap.String("platform", platform), zap.Error(err))
				metrics.ObserveStatsUpsert("error")
				report.Failures = append(report.Failures, Failure{
					Platform: platform,
					Kind:     scrape.KindUnknown,
					Error:    err.Error(),
				})
			} else {
				metrics.ObserveStatsUpsert("success")
			}
		}
		report.Records = append(report.Records, rec)
	}

	logger.Info("social stats collected",
		zap.Int("records", len(report.Records)),
		zap.Int("failures", len(report.Failures)),
		zap.Bool("persisted", opts.Persist),
	)
	c.publish(ctx, logger, report)
	return report, nil
}

// collectOne fetches a single source, converting panics into errors so one
// misbehaving platform cannot take the run down.
func (c *Collector) collectOne(ctx context.Context, logger *zap.Logger, src Source, date string) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("%s: panic: %v", src.Platform(), r)
		}
	}()

	snap, err := src.Fetch(ctx)
	var partial *partialError
	if errors.As(err, &partial) {
		logger.Warn("recent posts unavailable; keeping profile counters",
			zap.String("platform", src.Platform()),
			zap.String("kind", string(scrape.KindOf(partial.err))),
			zap.Error(partial.err),
		)
		snap.RecentPosts = nil
		err = nil
	}
	if err != nil {
		return Record{}, err
	}
	return BuildRecord(src.Platform(), date, snap), nil
}

// BuildRecord derives engagement figures from a snapshot.
func BuildRecord(platform, date string, snap Snapshot) Record {
	rec := Record{
		Platform:  platform,
		Date:      date,
		Followers: snap.Followers,
		Posts:     snap.Posts,
		Views:     snap.Views,
	}
	if len(snap.RecentPosts) == 0 {
		rec.Likes = snap.Likes
		return rec
	}

	var likes, comments, shares, views int64
	top := snap.RecentPosts[0]
	for _, p := range snap.RecentPosts {
		likes += p.Likes
		comments += p.Comments
		shares += p.Shares
		views += p.Views
		if p.Interactions() > top.Interactions() {
			top = p
		}
	}
	rec.Likes = int64Ptr(likes)
	rec.Comments = int64Ptr(comments)
	rec.Shares = int64Ptr(shares)
	if rec.Views == nil && views > 0 {
		rec.Views = int64Ptr(views)
	}
	if rate, ok := EngagementRate(likes, comments, shares, snap.Followers); ok {
		rec.EngagementRate = &rate
	}
	if top.URL != "" {
		url := top.URL
		rec.TopPostURL = &url
	}
	return rec
}

// EngagementRate is interactions as a percentage of followers, rounded to two
// decimal places. It is undefined when there are no followers.
func EngagementRate(likes, comments, shares, followers int64) (float64, bool) {
	if followers <= 0 {
		return 0, false
	}
	rate := float64(likes+comments+shares) / float64(followers) * 100
	return math.Round(rate*100) / 100, true
}

func (c *Collector) selectSources(platforms []string) ([]Source, error) {
	if len(platforms) == 0 {
		return c.opts.Sources, nil
	}
	wanted := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		if !IsPlatform(p) {
			return nil, errors.Wrapf(ErrInvalidOptions, "unknown platform %q", p)
		}
		wanted[p] = true
	}
	for p := range wanted {
		if !c.hasSource(p) {
			return nil, errors.Wrapf(ErrInvalidOptions, "platform %q is not enabled", p)
		}
	}
	selected := make([]Source, 0, len(wanted))
	for _, src := range c.opts.Sources {
		if wanted[src.Platform()] {
			selected = append(selected, src)
		}
	}
	return selected, nil
}

func (c *Collector) hasSource(platform string) bool {
	for _, src := range c.opts.Sources {
		if src.Platform() == platform {
			return true
		}
	}
	return false
}

// History returns stored records ordered by date then platform.
func (c *Collector) History(ctx context.Context, q HistoryQuery) ([]Record, error) {
	if c.opts.Store == nil {
		return nil, ErrStoreUnavailable
	}
	if q.Platform != "" && !IsPlatform(q.Platform) {
		return nil, errors.Wrapf(ErrInvalidOptions, "unknown platform %q", q.Platform)
	}
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := ParseDate(d); err != nil {
			return nil, err
		}
	}
	if q.From != "" && q.To != "" && q.From > q.To {
		return nil, errors.Wrapf(ErrInvalidOptions, "from %s is after to %s", q.From, q.To)
	}
	records, err := c.opts.Store.ListRecords(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (c *Collector) publish(ctx context.Context, logger *zap.Logger, report Report) {
	if c.opts.Publisher == nil || c.opts.Topic == "" {
		return
	}
	event := scrape.Event{
		Type:       scrape.EventSocialStatsCollected,
		ID:         report.RunID,
		OccurredAt: c.opts.Clock.Now().UTC(),
		Payload:    report,
	}
	if _, err := c.opts.Publisher.Publish(ctx, c.opts.Topic, event); err != nil {
		logger.Warn("failed to publish collection event", zap.Error(err))
	}
}
