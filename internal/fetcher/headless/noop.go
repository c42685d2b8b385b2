package headless

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

// ErrHeadlessDisabled is returned when headless rendering is switched off.
var ErrHeadlessDisabled = errors.New("headless rendering disabled")

// Noop stands in for the chromedp fetcher when headless rendering is off.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with ErrHeadlessDisabled, marked as a fetch failure.
func (Noop) Fetch(_ context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	return scrape.FetchResponse{}, scrape.FetchFailed(ErrHeadlessDisabled, "headless %s", request.URL)
}
