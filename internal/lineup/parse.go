package lineup

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ovalfantasy/ovalsync/internal/scrape"
)

type extractFunc func(doc *goquery.Document, markup string) []rawTeam

type strategy struct {
	name    Strategy
	extract extractFunc
}

// strategies is the fallback chain; the first non-empty result wins.
var strategies = []strategy{
	{StrategyStructured, extractStructured},
	{StrategyJSONLD, extractJSONLD},
	{StrategyAttributes, extractAttributes},
	{StrategyRegex, extractRegex},
}

// Parse extracts a lineup from a match page. It fails with a parse failed
// error when no strategy finds a single player.
func Parse(matchID string, body []byte) (Lineup, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Lineup{}, scrape.ParseFailed(nil, "lineup %s: empty page", matchID)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Lineup{}, scrape.ParseFailed(err, "lineup %s: read html", matchID)
	}
	markup := string(body)

	tried := make([]string, 0, len(strategies))
	for _, s := range strategies {
		tried = append(tried, string(s.name))
		teams := s.extract(doc, markup)
		if len(teams) == 0 {
			continue
		}
		lineup, players := assemble(matchID, s.name, teams)
		if players > 0 {
			return lineup, nil
		}
	}
	return Lineup{}, scrape.ParseFailed(nil, "lineup %s: no players found (tried %s)", matchID, strings.Join(tried, ", "))
}
