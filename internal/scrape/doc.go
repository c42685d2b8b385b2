// Package scrape holds the vocabulary shared by the lineup scraper and the
// social stats collector: fetch request/response types, the narrow interfaces
// that plumbing packages implement, and the error taxonomy surfaced to callers.
//
// Every handler in this module is a leaf. It fetches one page or API, runs a
// best-effort parser, and shapes the result into a fixed record. Failures are
// classified into one of four kinds (missing credentials, fetch failed, parse
// failed, unknown) so HTTP and Lambda boundaries can render them uniformly.
package scrape
