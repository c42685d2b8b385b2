package lineup

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
)

var (
	windowStateRe = regexp.MustCompile(`window\.__[A-Za-z0-9_]+__\s*=\s*`)

	playerListKeys = []string{"players", "lineup", "roster", "athletes", "squad"}
	teamNameKeys   = []string{"name", "displayName", "teamName", "shortDisplayName"}
	playerNameKeys = []string{"name", "displayName", "fullName"}
	firstNameKeys  = []string{"firstName", "givenName"}
	lastNameKeys   = []string{"lastName", "familyName"}
	numberKeys     = []string{"number", "jersey", "shirtNumber"}
)

func extractStructured(doc *goquery.Document, markup string) []rawTeam {
	var blobs []string
	doc.Find(`script#__NEXT_DATA__, script[type="application/json"]`).Each(func(_ int, s *goquery.Selection) {
		blobs = append(blobs, s.Text())
	})
	for _, loc := range windowStateRe.FindAllStringIndex(markup, -1) {
		if blob := balancedJSON(markup, loc[1]); blob != "" {
			blobs = append(blobs, blob)
		}
	}

	var teams []rawTeam
	for _, blob := range blobs {
		var tree any
		if err := sonic.UnmarshalString(strings.TrimSpace(blob), &tree); err != nil {
			continue
		}
		collectTeams(tree, &teams)
		if len(teams) > 0 {
			break
		}
	}
	return teams
}

// balancedJSON returns the JSON object or array starting at markup[start:],
// honouring string literals, or "" when it does not close.
func balancedJSON(markup string, start int) string {
	if start >= len(markup) || (markup[start] != '{' && markup[start] != '[') {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(markup); i++ {
		c := markup[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return markup[start : i+1]
			}
		}
	}
	return ""
}

// collectTeams walks the decoded tree in a stable order and appends every
// team container it finds. It does not descend into a container once matched.
func collectTeams(node any, out *[]rawTeam) {
	switch v := node.(type) {
	case map[string]any:
		if team, ok := teamFromMap(v); ok {
			*out = append(*out, team)
			return
		}
		for _, key := range sortedKeys(v) {
			collectTeams(v[key], out)
		}
	case []any:
		for _, item := range v {
			collectTeams(item, out)
		}
	}
}

func teamFromMap(m map[string]any) (rawTeam, bool) {
	team := rawTeam{Name: teamName(m), Side: sideOf(m)}

	starters, hasStarters := m["starters"].([]any)
	subs, hasSubs := m["substitutes"].([]any)
	if hasStarters || hasSubs {
		team.Players = append(team.Players, playersFrom(starters, boolPtr(false))...)
		team.Players = append(team.Players, playersFrom(subs, boolPtr(true))...)
		return team, len(team.Players) > 0
	}

	for _, key := range playerListKeys {
		list, ok := m[key].([]any)
		if !ok {
			continue
		}
		if players := playersFrom(list, nil); len(players) > 0 {
			team.Players = players
			return team, true
		}
	}
	return rawTeam{}, false
}

func teamName(m map[string]any) string {
	if nested, ok := m["team"].(map[string]any); ok {
		if name := firstString(nested, teamNameKeys...); name != "" {
			return name
		}
	}
	return firstString(m, teamNameKeys...)
}

func sideOf(m map[string]any) string {
	if side := firstString(m, "homeAway", "side"); side != "" {
		return strings.ToLower(side)
	}
	if home, ok := m["isHome"].(bool); ok {
		if home {
			return "home"
		}
		return "away"
	}
	return ""
}

func playersFrom(list []any, bench *bool) []rawPlayer {
	var players []rawPlayer
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p, ok := playerFromMap(m)
		if !ok {
			continue
		}
		if bench != nil {
			p.Bench = bench
		}
		players = append(players, p)
	}
	return players
}

func playerFromMap(m map[string]any) (rawPlayer, bool) {
	athlete, _ := m["athlete"].(map[string]any)
	lookup := func(keys ...string) string {
		if v := firstString(m, keys...); v != "" {
			return v
		}
		if athlete != nil {
			return firstString(athlete, keys...)
		}
		return ""
	}

	p := rawPlayer{Player: Player{
		Name:      lookup(playerNameKeys...),
		FirstName: lookup(firstNameKeys...),
		LastName:  lookup(lastNameKeys...),
		Position:  positionOf(m),
		Number:    numberOf(m),
	}}
	if p.Position == "" && athlete != nil {
		p.Position = positionOf(athlete)
	}
	if p.Number == 0 && athlete != nil {
		p.Number = numberOf(athlete)
	}
	if p.Name == "" && p.FirstName == "" && p.LastName == "" {
		return rawPlayer{}, false
	}

	for _, key := range []string{"starter", "isStarter"} {
		if v, ok := m[key].(bool); ok {
			p.Bench = boolPtr(!v)
		}
	}
	for _, key := range []string{"substitute", "bench"} {
		if v, ok := m[key].(bool); ok {
			p.Bench = boolPtr(v)
		}
	}
	return p, true
}

func positionOf(m map[string]any) string {
	switch v := m["position"].(type) {
	case string:
		return v
	case map[string]any:
		return firstString(v, "name", "displayName", "abbreviation")
	}
	return ""
}

func numberOf(m map[string]any) int {
	for _, key := range numberKeys {
		switch v := m[key].(type) {
		case float64:
			if v > 0 && v < 100 {
				return int(v)
			}
		case string:
			if n := parseNumber(v); n > 0 {
				return n
			}
		}
	}
	return 0
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
