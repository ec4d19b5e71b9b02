// Package progression decides what a claimed local date means for a player
// and applies the resulting push or rollback.
package progression

import (
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/calendar"
)

// Status is the derived progression state of a player for a claimed date.
// It is never stored.
type Status int

const (
	// StatusFresh means the player has never pushed
	StatusFresh Status = iota
	// StatusAlreadyPlayed means the claimed date is on or before the last push
	StatusAlreadyPlayed
	// StatusRollbackRequired means at least one day was missed with height to lose
	StatusRollbackRequired
	// StatusAdvance means a push on the claimed date is legal
	StatusAdvance
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusAlreadyPlayed:
		return "already_played"
	case StatusRollbackRequired:
		return "rollback_required"
	case StatusAdvance:
		return "advance"
	default:
		return "unknown"
	}
}

// Classify derives the player's status for the claimed date from persisted
// fields alone. Checks run in priority order; the first match wins.
func Classify(player *model.Player, claimed string) (Status, error) {
	if !calendar.IsValidDate(claimed) {
		return 0, calendar.ErrInvalidDate
	}
	if !player.HasPlayed() {
		return StatusFresh, nil
	}

	cmp, err := calendar.Compare(claimed, player.LastPlayedDate)
	if err != nil {
		return 0, err
	}
	if cmp <= 0 {
		return StatusAlreadyPlayed, nil
	}

	if player.Height > 0 && !calendar.IsConsecutiveDay(player.LastPlayedDate, claimed) {
		return StatusRollbackRequired, nil
	}
	return StatusAdvance, nil
}

// daysMissed is the number of whole days skipped between the last push and
// the claimed date, never less than 1
func daysMissed(lastPlayed, claimed string) int {
	gap, err := calendar.DaysBetween(lastPlayed, claimed)
	if err != nil || gap < 2 {
		return 1
	}
	return gap - 1
}
