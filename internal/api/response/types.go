package response

import (
	"time"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/leaderboard"
	"github.com/mcoot/boulder/internal/services/progression"
)

// Registered is the response for player registration
type Registered struct {
	ID string `json:"id"`
}

// PlayerState is the response for GET /api/player
type PlayerState struct {
	ID             string  `json:"id"`
	Height         int     `json:"height"`
	Streak         int     `json:"streak"`
	LastPlayedDate *string `json:"lastPlayedDate"`
	HasPlayedToday bool    `json:"hasPlayedToday"`
	NeedsRollback  bool    `json:"needsRollback"`
	PreviousHeight int     `json:"previousHeight"`
	TotalPushes    int     `json:"totalPushes"`
	MaxHeight      int     `json:"maxHeight"`
	DeathCount     int     `json:"deathCount"`
}

// PlayerStateFromView converts a progression view
func PlayerStateFromView(v *progression.View) PlayerState {
	p := v.Player

	var lastPlayed *string
	if p.HasPlayed() {
		d := p.LastPlayedDate
		lastPlayed = &d
	}

	return PlayerState{
		ID:             string(p.ID),
		Height:         p.Height,
		Streak:         p.Streak,
		LastPlayedDate: lastPlayed,
		HasPlayedToday: v.HasPlayedToday,
		NeedsRollback:  v.NeedsRollback,
		PreviousHeight: v.PreviousHeight,
		TotalPushes:    p.TotalPushes,
		MaxHeight:      p.MaxHeight,
		DeathCount:     p.DeathCount,
	}
}

// Progress is the response for push and acknowledge-rollback
type Progress struct {
	Success bool `json:"success"`
	Height  int  `json:"height"`
	Streak  int  `json:"streak"`
}

// ProgressFromModel converts a model.Player
func ProgressFromModel(p *model.Player) Progress {
	return Progress{
		Success: true,
		Height:  p.Height,
		Streak:  p.Streak,
	}
}

// Death is one entry of a player's death history
type Death struct {
	ID             int64     `json:"id"`
	HeightLost     int       `json:"heightLost"`
	StreakLost     int       `json:"streakLost"`
	DaysMissed     int       `json:"daysMissed"`
	LastPlayedDate string    `json:"lastPlayedDate"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Deaths is the response for GET /api/player/deaths
type Deaths struct {
	Deaths []Death `json:"deaths"`
}

// DeathsFromModel converts death events
func DeathsFromModel(events []*model.DeathEvent) Deaths {
	deaths := make([]Death, len(events))
	for i, d := range events {
		deaths[i] = Death{
			ID:             d.ID,
			HeightLost:     d.HeightLost,
			StreakLost:     d.StreakLost,
			DaysMissed:     d.DaysMissed,
			LastPlayedDate: d.LastPlayedDate,
			CreatedAt:      d.CreatedAt,
		}
	}
	return Deaths{Deaths: deaths}
}

// LeaderboardEntry is one ranked player
type LeaderboardEntry struct {
	ID         string `json:"id"`
	Height     int    `json:"height"`
	Streak     int    `json:"streak"`
	MaxHeight  int    `json:"maxHeight"`
	DeathCount int    `json:"deathCount"`
}

// Leaderboard is the response for GET /api/leaderboard
type Leaderboard struct {
	Players []LeaderboardEntry `json:"players"`
}

// LeaderboardFromModel converts ranked players
func LeaderboardFromModel(players []*model.Player) Leaderboard {
	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{
			ID:         string(p.ID),
			Height:     p.Height,
			Streak:     p.Streak,
			MaxHeight:  p.MaxHeight,
			DeathCount: p.DeathCount,
		}
	}
	return Leaderboard{Players: entries}
}

// Survivorship is the response for GET /api/survivorship
type Survivorship struct {
	TotalPlayers  int     `json:"totalPlayers"`
	AlivePlayers  int     `json:"alivePlayers"`
	DeadPlayers   int     `json:"deadPlayers"`
	TotalDeaths   int     `json:"totalDeaths"`
	AverageHeight float64 `json:"averageHeight"`
	HighestHeight int     `json:"highestHeight"`
	LongestStreak int     `json:"longestStreak"`
}

// SurvivorshipFromModel converts the population summary
func SurvivorshipFromModel(s *leaderboard.Survivorship) Survivorship {
	return Survivorship{
		TotalPlayers:  s.TotalPlayers,
		AlivePlayers:  s.AlivePlayers,
		DeadPlayers:   s.DeadPlayers,
		TotalDeaths:   s.TotalDeaths,
		AverageHeight: s.AverageHeight,
		HighestHeight: s.HighestHeight,
		LongestStreak: s.LongestStreak,
	}
}

// Health is the response for GET /api/health
type Health struct {
	Status string `json:"status"`
}
