package lineup

import "time"

// Strategy names the extraction approach that produced a lineup.
type Strategy string

// Extraction strategies in the order Parse tries them.
const (
	StrategyStructured Strategy = "structured"
	StrategyJSONLD     Strategy = "jsonld"
	StrategyAttributes Strategy = "attributes"
	StrategyRegex      Strategy = "regex"
)

// Player is a single squad member. Number is 0 when the source omits it.
type Player struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	Number    int    `json:"number,omitempty"`
}

// Team holds one side's starting fifteen and replacements.
type Team struct {
	Name     string   `json:"name"`
	Starting []Player `json:"starting"`
	Bench    []Player `json:"bench"`
}

// Lineup is the scraped team sheet for a match.
type Lineup struct {
	MatchID   string    `json:"match_id"`
	Source    string    `json:"source,omitempty"`
	Strategy  Strategy  `json:"strategy"`
	Headless  bool      `json:"headless"`
	Home      Team      `json:"home"`
	Away      Team      `json:"away"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Content is l without the fields that change between scrapes of an
// unchanged page.
func (l Lineup) Content() Lineup {
	l.Headless = false
	l.ScrapedAt = time.Time{}
	return l
}

// PlayerCount is the number of players across both teams.
func (l Lineup) PlayerCount() int {
	return len(l.Home.Starting) + len(l.Home.Bench) + len(l.Away.Starting) + len(l.Away.Bench)
}

// rawPlayer is a player as a strategy found it, before normalization.
// Bench is nil when the source does not say.
type rawPlayer struct {
	Player
	Bench *bool
}

type rawTeam struct {
	Name    string
	Side    string
	Players []rawPlayer
}

func boolPtr(v bool) *bool {
	return &v
}
