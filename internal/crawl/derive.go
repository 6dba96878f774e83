package crawl

import (
	"fmt"
	"sort"
)

// LeagueResult pairs a league page's identity with its extraction result so
// downstream identity sets can be derived from it.
type LeagueResult struct {
	Key    Key
	Season Season
	Result Result
}

// TeamSeason identifies one team/season page. Teams are scheduled per
// distinct (title, season) pair; a team appearing under several leagues in
// the same season is fetched once.
type TeamSeason struct {
	Title  string
	Season Season
}

// Identities are the derived identity sets feeding stages 2-4. Slices are
// deduplicated and sorted so scheduling is deterministic.
type Identities struct {
	Teams   []TeamSeason
	Players []string
	Matches []string
}

// DeriveIdentities scans all league snapshots for a run and unions their
// contributions into the team, player, and match identity sets.
func DeriveIdentities(results []LeagueResult) (Identities, error) {
	teams := make(map[TeamSeason]struct{})
	players := make(map[string]struct{})
	matches := make(map[string]struct{})

	for _, lr := range results {
		snap, err := DecodeSnapshot(lr.Result)
		if err != nil {
			return Identities{}, fmt.Errorf("league %s: %w", lr.Key, err)
		}
		for _, team := range snap.Teams {
			if team.Title == "" {
				continue
			}
			teams[TeamSeason{Title: team.Title, Season: lr.Season}] = struct{}{}
		}
		for _, player := range snap.Players {
			if player.ID == "" {
				continue
			}
			players[player.ID] = struct{}{}
		}
		for _, match := range snap.Matches {
			if match.ID == "" {
				continue
			}
			matches[match.ID] = struct{}{}
		}
	}

	ids := Identities{
		Teams:   make([]TeamSeason, 0, len(teams)),
		Players: make([]string, 0, len(players)),
		Matches: make([]string, 0, len(matches)),
	}
	for ts := range teams {
		ids.Teams = append(ids.Teams, ts)
	}
	sort.Slice(ids.Teams, func(i, j int) bool {
		if ids.Teams[i].Title != ids.Teams[j].Title {
			return ids.Teams[i].Title < ids.Teams[j].Title
		}
		return ids.Teams[i].Season < ids.Teams[j].Season
	})
	for id := range players {
		ids.Players = append(ids.Players, id)
	}
	sort.Strings(ids.Players)
	for id := range matches {
		ids.Matches = append(ids.Matches, id)
	}
	sort.Strings(ids.Matches)
	return ids, nil
}
