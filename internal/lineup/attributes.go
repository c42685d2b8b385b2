package lineup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var benchSections = map[string]bool{
	"bench":        true,
	"replacements": true,
	"substitutes":  true,
	"subs":         true,
}

var startingSections = map[string]bool{
	"starting":    true,
	"starters":    true,
	"starting-xv": true,
	"xv":          true,
}

func extractAttributes(doc *goquery.Document, _ string) []rawTeam {
	bySide := map[string]*rawTeam{}
	var order []string

	doc.Find("[data-player-name], [data-player]").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("data-player-name", ""))
		if name == "" {
			name = strings.TrimSpace(sel.AttrOr("data-player", ""))
		}
		if name == "" {
			name = sel.Text()
		}

		container := sel.Closest("[data-team], [data-side]")
		side, teamName := sideAndName(container)
		if side == "" {
			return
		}
		team, ok := bySide[side]
		if !ok {
			team = &rawTeam{Side: side}
			bySide[side] = team
			order = append(order, side)
		}
		if team.Name == "" {
			team.Name = teamName
		}

		number := sel.AttrOr("data-number", "")
		if number == "" {
			number = sel.AttrOr("data-shirt", "")
		}
		team.Players = append(team.Players, rawPlayer{
			Player: Player{
				Name:     name,
				Position: sel.AttrOr("data-position", ""),
				Number:   parseNumber(number),
			},
			Bench: benchFlag(sel),
		})
	})

	teams := make([]rawTeam, 0, len(order))
	for _, side := range order {
		teams = append(teams, *bySide[side])
	}
	return teams
}

// sideAndName reads home/away and the team name off a team container.
// data-team may hold either the side or the team name itself.
func sideAndName(container *goquery.Selection) (string, string) {
	if container.Length() == 0 {
		return "", ""
	}
	side := strings.ToLower(strings.TrimSpace(container.AttrOr("data-side", "")))
	team := strings.TrimSpace(container.AttrOr("data-team", ""))
	name := strings.TrimSpace(container.AttrOr("data-team-name", ""))

	switch strings.ToLower(team) {
	case "home", "away":
		if side == "" {
			side = strings.ToLower(team)
		}
	default:
		if name == "" {
			name = team
		}
	}
	if name == "" {
		name = strings.TrimSpace(container.Find("[data-team-name]").First().AttrOr("data-team-name", ""))
	}
	if side != "home" && side != "away" {
		// A named team without a side still counts; keep document order.
		if name == "" {
			return "", ""
		}
		side = "team:" + strings.ToLower(name)
	}
	return side, name
}

func benchFlag(sel *goquery.Selection) *bool {
	role := strings.ToLower(strings.TrimSpace(sel.AttrOr("data-role", "")))
	if benchSections[role] || role == "replacement" || role == "substitute" {
		return boolPtr(true)
	}
	if startingSections[role] || role == "starter" {
		return boolPtr(false)
	}
	section := strings.ToLower(strings.TrimSpace(sel.Closest("[data-section]").AttrOr("data-section", "")))
	switch {
	case benchSections[section]:
		return boolPtr(true)
	case startingSections[section]:
		return boolPtr(false)
	}
	return nil
}
