package lineup

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var classAttrRe = regexp.MustCompile(`(?i)class\s*=\s*["']([^"']*)["']`)

var (
	homeClasses     = []string{"home", "home-team", "team-home", "lineup-home", "lineup--home"}
	awayClasses     = []string{"away", "away-team", "team-away", "lineup-away", "lineup--away"}
	benchClasses    = []string{"bench", "replacements", "substitutes", "subs"}
	startingClasses = []string{"starting", "starters", "starting-xv"}
	numberClasses   = []string{"player-number", "player-shirt", "shirt", "shirt-number", "jersey", "jersey-number"}
	itemClasses     = []string{"player", "player-item", "player-row", "lineup-player", "lineup__player"}
)

// extractRegex scans class attributes in document order. Side markers open a
// team, bench markers switch the current section, and each player-name emits
// a player. A shirt number seen before the name belongs to that name; one seen
// after a numberless name, within the same player item, belongs to the
// player just emitted.
func extractRegex(_ *goquery.Document, markup string) []rawTeam {
	var (
		teams        []rawTeam
		current      = -1
		number       int
		unnumbered   = -1 // index in teams[current] of a player still missing its number
		section      *bool
		sideSections = map[string]int{}
	)
	open := func(side string) {
		if idx, ok := sideSections[side]; ok && side != "" {
			current = idx
		} else {
			teams = append(teams, rawTeam{Side: side})
			current = len(teams) - 1
			if side != "" {
				sideSections[side] = current
			}
		}
		number = 0
		unnumbered = -1
		section = nil
	}

	for _, loc := range classAttrRe.FindAllStringSubmatchIndex(markup, -1) {
		classes := strings.Fields(strings.ToLower(markup[loc[2]:loc[3]]))
		tagEnd := loc[1]

		switch {
		case hasClass(classes, homeClasses...):
			open("home")
		case hasClass(classes, awayClasses...):
			open("away")
		}
		if hasClass(classes, "team-name") {
			if current < 0 {
				open("")
			}
			if teams[current].Name == "" {
				teams[current].Name = textAfter(markup, tagEnd)
			}
		}
		switch {
		case hasClass(classes, benchClasses...):
			section = boolPtr(true)
		case hasClass(classes, startingClasses...):
			section = boolPtr(false)
		}
		if hasClass(classes, itemClasses...) {
			number = 0
			unnumbered = -1
		}
		if hasClass(classes, numberClasses...) {
			n := parseNumber(textAfter(markup, tagEnd))
			if unnumbered >= 0 {
				teams[current].Players[unnumbered].Number = n
				unnumbered = -1
			} else {
				number = n
			}
		}
		if hasClass(classes, "player-name") {
			name := textAfter(markup, tagEnd)
			if name == "" {
				continue
			}
			if current < 0 {
				open("")
			}
			teams[current].Players = append(teams[current].Players, rawPlayer{
				Player: Player{Name: name, Number: number},
				Bench:  section,
			})
			unnumbered = -1
			if number == 0 {
				unnumbered = len(teams[current].Players) - 1
			}
			number = 0
		}
	}
	return teams
}

func hasClass(classes []string, want ...string) bool {
	for _, c := range classes {
		for _, w := range want {
			if c == w {
				return true
			}
		}
	}
	return false
}

// textAfter returns the first non-empty text run after the tag containing pos,
// skipping up to a few nested tags.
func textAfter(markup string, pos int) string {
	for hops := 0; hops < 4; hops++ {
		gt := strings.IndexByte(markup[pos:], '>')
		if gt < 0 {
			return ""
		}
		pos += gt + 1
		lt := strings.IndexByte(markup[pos:], '<')
		if lt < 0 {
			return ""
		}
		if text := cleanText(html.UnescapeString(markup[pos : pos+lt])); text != "" {
			return text
		}
		pos += lt
	}
	return ""
}
