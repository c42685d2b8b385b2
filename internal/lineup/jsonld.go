package lineup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
)

func extractJSONLD(doc *goquery.Document, _ string) []rawTeam {
	var teams []rawTeam
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var tree any
		if err := sonic.UnmarshalString(strings.TrimSpace(s.Text()), &tree); err != nil {
			return
		}
		for _, event := range sportsEvents(tree) {
			teams = append(teams, teamsFromEvent(event)...)
		}
	})
	return teams
}

// sportsEvents flattens top-level arrays and @graph containers into SportsEvent nodes.
func sportsEvents(node any) []map[string]any {
	var events []map[string]any
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			events = append(events, sportsEvents(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			events = append(events, sportsEvents(graph)...)
		}
		if hasType(v, "SportsEvent") {
			events = append(events, v)
		}
	}
	return events
}

func hasType(m map[string]any, want string) bool {
	switch t := m["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func teamsFromEvent(event map[string]any) []rawTeam {
	var teams []rawTeam
	for _, side := range []string{"home", "away"} {
		team, ok := firstMap(event[side+"Team"])
		if !ok {
			continue
		}
		rt := rawTeam{Name: firstString(team, "name", "alternateName"), Side: side}
		for _, athlete := range asList(team["athlete"]) {
			person, ok := athlete.(map[string]any)
			if !ok {
				continue
			}
			p := Player{
				Name:      firstString(person, "name"),
				FirstName: firstString(person, "givenName"),
				LastName:  firstString(person, "familyName"),
				Position:  firstString(person, "roleName", "jobTitle"),
				Number:    parseNumber(firstString(person, "identifier", "number")),
			}
			if p.Name == "" && p.FirstName == "" && p.LastName == "" {
				continue
			}
			rt.Players = append(rt.Players, rawPlayer{Player: p})
		}
		teams = append(teams, rt)
	}
	return teams
}

func firstMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return nil
	default:
		return []any{t}
	}
}
