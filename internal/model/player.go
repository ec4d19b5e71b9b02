package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is the mutable progress record for one player
type Player struct {
	ID             PlayerID  `json:"id"`
	Height         int       `json:"height"`
	Streak         int       `json:"streak"`
	LastPlayedDate string    `json:"last_played_date,omitempty"` // empty until the first push
	TotalPushes    int       `json:"total_pushes"`
	MaxHeight      int       `json:"max_height"`
	DeathCount     int       `json:"death_count"`
	Version        int64     `json:"version"` // bumped on every committed mutation
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasPlayed reports whether the player has ever pushed
func (p *Player) HasPlayed() bool {
	return p.LastPlayedDate != ""
}

// Clone returns a copy of the player that can be mutated freely
func (p *Player) Clone() *Player {
	c := *p
	return &c
}

// PushEvent records a single successful push. Unique per (PlayerID, PlayDate).
type PushEvent struct {
	PlayerID     PlayerID  `json:"player_id" db:"player_id"`
	PlayDate     string    `json:"play_date" db:"play_date"`
	HeightAfter  int       `json:"height_after" db:"height_after"`
	StreakAtTime int       `json:"streak_at_time" db:"streak_at_time"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DeathEvent records a rollback. LastPlayedDate anchors the missed interval,
// so at most one DeathEvent exists per (PlayerID, LastPlayedDate).
type DeathEvent struct {
	ID             int64     `json:"id" db:"id"`
	PlayerID       PlayerID  `json:"player_id" db:"player_id"`
	HeightLost     int       `json:"height_lost" db:"height_lost"`
	StreakLost     int       `json:"streak_lost" db:"streak_lost"`
	DaysMissed     int       `json:"days_missed" db:"days_missed"`
	LastPlayedDate string    `json:"last_played_date" db:"last_played_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Survivorship summarises how the player population is doing
type Survivorship struct {
	TotalPlayers  int
	AlivePlayers  int // height > 0
	TotalDeaths   int
	TotalHeight   int
	HighestHeight int
	LongestStreak int
}
