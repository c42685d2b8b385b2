package socialstats

import "context"

// Source fetches the current counters for one platform.
type Source interface {
	Platform() string
	Fetch(ctx context.Context) (Snapshot, error)
}

// Snapshot is what a Source reports before engagement figures are derived.
type Snapshot struct {
	Followers int64
	Posts     int64
	// Views is an account-level total when the platform exposes one.
	Views *int64
	// Likes is an account-level total, used only when RecentPosts is empty.
	Likes       *int64
	RecentPosts []Post
}

// Post is a recent post's interaction counters.
type Post struct {
	URL      string
	Likes    int64
	Comments int64
	Shares   int64
	Views    int64
}

// Interactions is likes plus comments plus shares.
func (p Post) Interactions() int64 {
	return p.Likes + p.Comments + p.Shares
}
