package crawl

import (
	"encoding/json"
	"fmt"
)

// Embedded variable names a league page exposes.
const (
	varTeams   = "teamsData"
	varPlayers = "playersData"
	varDates   = "datesData"
)

// TeamDescriptor is the slice of a league page's team entry the pipeline
// cares about. Team pages are keyed by title, not numeric id.
type TeamDescriptor struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PlayerDescriptor carries a player's id from a league page.
type PlayerDescriptor struct {
	ID string `json:"id"`
}

// MatchDescriptor carries a match's id from a league page's dates table.
type MatchDescriptor struct {
	ID string `json:"id"`
}

// LeagueSnapshot is the typed view of a league/season extraction result.
// Missing variables decode to empty collections.
type LeagueSnapshot struct {
	Teams   map[string]TeamDescriptor
	Players []PlayerDescriptor
	Matches []MatchDescriptor
}

// DecodeSnapshot projects a Result onto the three league collections.
func DecodeSnapshot(res Result) (LeagueSnapshot, error) {
	var snap LeagueSnapshot
	if raw, ok := res[varTeams]; ok {
		if err := json.Unmarshal(raw, &snap.Teams); err != nil {
			return LeagueSnapshot{}, fmt.Errorf("decode %s: %w", varTeams, err)
		}
	}
	if raw, ok := res[varPlayers]; ok {
		if err := json.Unmarshal(raw, &snap.Players); err != nil {
			return LeagueSnapshot{}, fmt.Errorf("decode %s: %w", varPlayers, err)
		}
	}
	if raw, ok := res[varDates]; ok {
		if err := json.Unmarshal(raw, &snap.Matches); err != nil {
			return LeagueSnapshot{}, fmt.Errorf("decode %s: %w", varDates, err)
		}
	}
	return snap, nil
}
