// Package socialstats collects daily follower and engagement counters from
// the club's social accounts.
//
// Each platform is a Source. The Collector runs the selected sources one after
// another; a failing platform is recorded in the Report and never stops the
// rest of the run.
package socialstats
