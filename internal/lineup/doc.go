// Package lineup scrapes rugby match lineups from public match pages.
//
// Parse runs a fixed chain of extraction strategies over a page and keeps the
// first one that yields at least one player:
//
//   - structured: JSON state embedded in script tags (__NEXT_DATA__, window.__X__ blobs)
//   - jsonld: schema.org SportsEvent markup
//   - attributes: data-player-* attributes on the rendered DOM
//   - regex: class-name markers scanned straight off the raw markup
//
// Service wraps Parse with fetching, headless promotion, failure snapshots and
// completion events.
package lineup
