package lineup

import (
	"sort"
	"strconv"
	"strings"
)

// unionPositions maps rugby union shirt numbers to positions.
var unionPositions = map[int]string{
	1:  "Loosehead Prop",
	2:  "Hooker",
	3:  "Tighthead Prop",
	4:  "Lock",
	5:  "Lock",
	6:  "Blindside Flanker",
	7:  "Openside Flanker",
	8:  "Number 8",
	9:  "Scrum-half",
	10: "Fly-half",
	11: "Left Wing",
	12: "Inside Centre",
	13: "Outside Centre",
	14: "Right Wing",
	15: "Fullback",
}

const (
	replacementPosition = "Replacement"
	firstBenchNumber    = 16
)

// PositionForNumber returns the conventional position for a shirt number.
func PositionForNumber(n int) string {
	if n >= firstBenchNumber {
		return replacementPosition
	}
	return unionPositions[n]
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseNumber(s string) int {
	s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "#№"))
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 99 {
		return 0
	}
	return n
}

func normalizePlayer(p Player) Player {
	p.Name = cleanText(p.Name)
	p.FirstName = cleanText(p.FirstName)
	p.LastName = cleanText(p.LastName)
	p.Position = cleanText(p.Position)

	switch {
	case p.Name == "" && (p.FirstName != "" || p.LastName != ""):
		p.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	case p.Name != "" && p.FirstName == "" && p.LastName == "":
		if i := strings.LastIndex(p.Name, " "); i > 0 {
			p.FirstName, p.LastName = p.Name[:i], p.Name[i+1:]
		} else {
			p.LastName = p.Name
		}
	}
	if p.Position == "" {
		p.Position = PositionForNumber(p.Number)
	}
	return p
}

// buildTeam normalizes raw players and splits them into starters and bench.
// Players without an explicit bench flag are placed by shirt number.
func buildTeam(raw rawTeam) Team {
	team := Team{
		Name:     cleanText(raw.Name),
		Starting: []Player{},
		Bench:    []Player{},
	}
	seen := make(map[string]struct{}, len(raw.Players))
	for _, rp := range raw.Players {
		p := normalizePlayer(rp.Player)
		if p.Name == "" {
			continue
		}
		key := strconv.Itoa(p.Number) + "|" + strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		bench := p.Number >= firstBenchNumber
		if rp.Bench != nil {
			bench = *rp.Bench
		}
		if bench {
			team.Bench = append(team.Bench, p)
		} else {
			team.Starting = append(team.Starting, p)
		}
	}
	sortByNumber(team.Starting)
	sortByNumber(team.Bench)
	return team
}

func sortByNumber(players []Player) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i].Number, players[j].Number
		switch {
		case a == 0:
			return false
		case b == 0:
			return true
		default:
			return a < b
		}
	})
}

// assemble orders teams home then away and reports the total player count.
func assemble(matchID string, strategy Strategy, teams []rawTeam) (Lineup, int) {
	var home, away *rawTeam
	var rest []*rawTeam
	for i := range teams {
		t := &teams[i]
		switch strings.ToLower(strings.TrimSpace(t.Side)) {
		case "home":
			if home == nil {
				home = t
				continue
			}
		case "away":
			if away == nil {
				away = t
				continue
			}
		}
		rest = append(rest, t)
	}
	for _, t := range rest {
		switch {
		case home == nil:
			home = t
		case away == nil:
			away = t
		}
	}

	lineup := Lineup{
		MatchID:  matchID,
		Strategy: strategy,
		Home:     buildTeam(derefTeam(home)),
		Away:     buildTeam(derefTeam(away)),
	}
	return lineup, lineup.PlayerCount()
}

func derefTeam(t *rawTeam) rawTeam {
	if t == nil {
		return rawTeam{}
	}
	return *t
}
