package socialstats

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// DateLayout is the civil date format used for Record.Date.
const DateLayout = "2006-01-02"

// Platform names in collection order.
const (
	PlatformTwitter   = "twitter"
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformYouTube   = "youtube"
	PlatformTikTok    = "tiktok"
)

// Platforms lists every supported platform in the order the collector runs them.
var Platforms = []string{PlatformTwitter, PlatformInstagram, PlatformFacebook, PlatformYouTube, PlatformTikTok}

// Record is one platform's counters for one day. Optional metrics are nil
// when the platform did not report them.
type Record struct {
	Platform       string   `json:"platform"`
	Date           string   `json:"date"`
	Followers      int64    `json:"followers"`
	Posts          int64    `json:"posts"`
	Likes          *int64   `json:"likes,omitempty"`
	Comments       *int64   `json:"comments,omitempty"`
	Shares         *int64   `json:"shares,omitempty"`
	Views          *int64   `json:"views,omitempty"`
	EngagementRate *float64 `json:"engagement_rate,omitempty"`
	TopPostURL     *string  `json:"top_post_url,omitempty"`
}

// Failure explains why a platform is missing from a Report.
type Failure struct {
	Platform string      `json:"platform"`
	Kind     scrape.Kind `json:"kind"`
	Error    string      `json:"error"`
}

// Report is the outcome of one collection run.
type Report struct {
	RunID    string    `json:"run_id"`
	Date     string    `json:"date"`
	Records  []Record  `json:"records"`
	Failures []Failure `json:"failures"`
}

// HistoryQuery filters stored records. Empty fields do not filter.
type HistoryQuery struct {
	Platform string
	From     string
	To       string
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidOptions, "date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// IsPlatform reports whether name is a supported platform.
func IsPlatform(name string) bool {
	for _, p := range Platforms {
		if p == name {
			return true
		}
	}
	return false
}

func int64Ptr(v int64) *int64 {
	return &v
}
