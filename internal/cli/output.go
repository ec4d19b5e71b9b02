package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mcoot/boulder/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w, errW io.Writer) *Output {
	return &Output{format: format, w: w, errW: errW}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(o.w, data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error. API errors keep their code and loss details.
func (o *Output) PrintError(err error) {
	var apiErr *APIError
	if o.format == "json" {
		if errors.As(err, &apiErr) {
			o.printJSON(o.errW, ErrorResponse{Error: *apiErr})
			return
		}
		o.printJSON(o.errW, map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		})
		return
	}

	fmt.Fprintf(o.errW, "Error: %s\n", err)
	if errors.As(err, &apiErr) && apiErr.Code == "rollback_required" {
		if apiErr.DaysMissed != nil && apiErr.HeightLost != nil {
			fmt.Fprintf(o.errW, "Missed %d day(s); you will fall %d meter(s).\n", *apiErr.DaysMissed, *apiErr.HeightLost)
		}
		fmt.Fprintln(o.errW, "Run `boulder ack` to accept the fall, then push again.")
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(o.w, map[string]string{"message": msg})
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(w io.Writer, data any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Registered:
		fmt.Fprintf(o.w, "Registered player %s\n", v.ID)
	case response.PlayerState:
		o.printState(v)
	case response.Progress:
		fmt.Fprintf(o.w, "Height: %d\n", v.Height)
		fmt.Fprintf(o.w, "Streak: %d\n", v.Streak)
	case response.Deaths:
		o.printDeaths(v)
	case response.Leaderboard:
		o.printLeaderboard(v)
	case response.Survivorship:
		o.printSurvivorship(v)
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(o.w, data)
	}
}

func (o *Output) printState(s response.PlayerState) {
	if s.ID != "" {
		fmt.Fprintf(o.w, "Player: %s\n", s.ID)
	}
	fmt.Fprintf(o.w, "Height: %d (best %d)\n", s.Height, s.MaxHeight)
	fmt.Fprintf(o.w, "Streak: %d\n", s.Streak)
	if s.LastPlayedDate != nil {
		fmt.Fprintf(o.w, "Last pushed: %s\n", *s.LastPlayedDate)
	} else {
		fmt.Fprintln(o.w, "Last pushed: never")
	}
	fmt.Fprintf(o.w, "Pushes: %d, deaths: %d\n", s.TotalPushes, s.DeathCount)

	switch {
	case s.NeedsRollback:
		fmt.Fprintf(o.w, "You missed a day and will fall from %d. Run `boulder ack`.\n", s.PreviousHeight)
	case s.HasPlayedToday:
		fmt.Fprintln(o.w, "Already pushed today.")
	default:
		fmt.Fprintln(o.w, "Ready to push.")
	}
}

func (o *Output) printDeaths(d response.Deaths) {
	if len(d.Deaths) == 0 {
		fmt.Fprintln(o.w, "No deaths yet.")
		return
	}
	fmt.Fprintf(o.w, "Deaths (%d):\n", len(d.Deaths))
	for _, death := range d.Deaths {
		fmt.Fprintf(o.w, "  - after %s: lost %d meter(s), streak %d, missed %d day(s)\n",
			death.LastPlayedDate, death.HeightLost, death.StreakLost, death.DaysMissed)
	}
}

func (o *Output) printLeaderboard(l response.Leaderboard) {
	if len(l.Players) == 0 {
		fmt.Fprintln(o.w, "No players yet.")
		return
	}
	for i, p := range l.Players {
		fmt.Fprintf(o.w, "%3d. %s  height %d  streak %d  best %d  deaths %d\n",
			i+1, p.ID, p.Height, p.Streak, p.MaxHeight, p.DeathCount)
	}
}

func (o *Output) printSurvivorship(s response.Survivorship) {
	fmt.Fprintf(o.w, "Players: %d (%d climbing, %d on the ground)\n", s.TotalPlayers, s.AlivePlayers, s.DeadPlayers)
	fmt.Fprintf(o.w, "Deaths: %d\n", s.TotalDeaths)
	fmt.Fprintf(o.w, "Average height: %.2f\n", s.AverageHeight)
	fmt.Fprintf(o.w, "Highest: %d, longest streak: %d\n", s.HighestHeight, s.LongestStreak)
}
