package storage

import (
	"sort"

	"github.com/mcoot/boulder/internal/model"
)

// SortByHeight orders players for the leaderboard: height, then high-water
// mark, then id so the ordering is stable across backends.
func SortByHeight(players []*model.Player) {
	sort.Slice(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.MaxHeight != b.MaxHeight {
			return a.MaxHeight > b.MaxHeight
		}
		return a.ID < b.ID
	})
}

// Summarize folds players into survivorship totals
func Summarize(players []*model.Player) *model.Survivorship {
	s := &model.Survivorship{}
	for _, p := range players {
		s.TotalPlayers++
		if p.Height > 0 {
			s.AlivePlayers++
		}
		s.TotalDeaths += p.DeathCount
		s.TotalHeight += p.Height
		if p.MaxHeight > s.HighestHeight {
			s.HighestHeight = p.MaxHeight
		}
		if p.Streak > s.LongestStreak {
			s.LongestStreak = p.Streak
		}
	}
	return s
}
