package progression

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/boulder/internal/dependencies/clock"
	"github.com/mcoot/boulder/internal/metrics"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/calendar"
	"github.com/mcoot/boulder/internal/storage"
)

// Engine applies pushes and rollbacks to players
type Engine struct {
	storage storage.Storage
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new Engine
func New(storage storage.Storage, clock clock.Clock, metrics *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		storage: storage,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// View is a player's progress as seen from a claimed local date
type View struct {
	Player         *model.Player
	HasPlayedToday bool
	NeedsRollback  bool
	// PreviousHeight is the height a pending rollback would take away
	PreviousHeight int
}

// State reports the player's progress for localDate without writing
// anything. An empty id describes a player who has not registered yet; an
// empty localDate leaves the date-dependent flags false.
func (e *Engine) State(ctx context.Context, id model.PlayerID, localDate string) (*View, error) {
	if localDate != "" && !calendar.IsValidDate(localDate) {
		return nil, calendar.ErrInvalidDate
	}

	player := &model.Player{}
	if id != "" {
		var err error
		player, err = e.storage.GetPlayer(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	view := &View{Player: player}
	if localDate == "" {
		return view, nil
	}

	status, err := Classify(player, localDate)
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusAlreadyPlayed:
		view.HasPlayedToday = true
	case StatusRollbackRequired:
		view.NeedsRollback = true
		view.PreviousHeight = player.Height
	}
	return view, nil
}

// Push records the player's push for localDate.
//
// Returns model.ErrAlreadyPlayed when the date is already covered, and a
// *RollbackError when a day was missed; in the latter case the death for
// the missed interval is recorded but the player is left unchanged.
func (e *Engine) Push(ctx context.Context, id model.PlayerID, localDate string) (*model.Player, error) {
	if !calendar.IsValidDate(localDate) {
		return nil, calendar.ErrInvalidDate
	}

	player, err := e.storage.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}

	recorded, err := e.storage.HasPush(ctx, id, localDate)
	if err != nil {
		return nil, err
	}
	if recorded {
		e.metrics.RecordPush(metrics.OutcomeAlreadyPlayed)
		return nil, model.ErrAlreadyPlayed
	}

	status, err := Classify(player, localDate)
	if err != nil {
		return nil, err
	}

	switch status {
	case StatusAlreadyPlayed:
		e.metrics.RecordPush(metrics.OutcomeAlreadyPlayed)
		return nil, model.ErrAlreadyPlayed
	case StatusRollbackRequired:
		return nil, e.detectRollback(ctx, player, localDate)
	}

	return e.advance(ctx, player, localDate)
}

func (e *Engine) advance(ctx context.Context, player *model.Player, localDate string) (*model.Player, error) {
	now := e.clock.Now()

	player.Height++
	player.Streak++
	player.TotalPushes++
	player.LastPlayedDate = localDate
	player.MaxHeight = max(player.MaxHeight, player.Height)
	player.UpdatedAt = now

	push := &model.PushEvent{
		PlayerID:     player.ID,
		PlayDate:     localDate,
		HeightAfter:  player.Height,
		StreakAtTime: player.Streak,
		CreatedAt:    now,
	}

	if err := e.storage.CommitPush(ctx, player, push); err != nil {
		switch {
		case errors.Is(err, model.ErrAlreadyPlayed):
			e.metrics.RecordPush(metrics.OutcomeAlreadyPlayed)
		case errors.Is(err, model.ErrConcurrentUpdate):
			e.metrics.RecordPush(metrics.OutcomeConflict)
		default:
			e.logger.Error("failed to commit push", "player_id", player.ID, "local_date", localDate, "error", err)
		}
		return nil, err
	}

	e.metrics.RecordPush(metrics.OutcomePushed)
	e.logger.Info("player pushed",
		"player_id", player.ID,
		"local_date", localDate,
		"height", player.Height,
		"streak", player.Streak,
	)
	return player, nil
}

// detectRollback records the death for the missed interval once and
// returns the loss the client has to animate
func (e *Engine) detectRollback(ctx context.Context, player *model.Player, localDate string) error {
	missed := daysMissed(player.LastPlayedDate, localDate)

	death := &model.DeathEvent{
		PlayerID:       player.ID,
		HeightLost:     player.Height,
		StreakLost:     player.Streak,
		DaysMissed:     missed,
		LastPlayedDate: player.LastPlayedDate,
		CreatedAt:      e.clock.Now(),
	}

	stored, created, err := e.storage.RecordDeath(ctx, death)
	if err != nil {
		e.logger.Error("failed to record death", "player_id", player.ID, "error", err)
		return err
	}
	if created {
		e.metrics.RecordRollbackDetected()
		e.logger.Info("rollback detected",
			"player_id", player.ID,
			"local_date", localDate,
			"height", player.Height,
			"days_missed", missed,
			"death_id", stored.ID,
		)
	}

	e.metrics.RecordPush(metrics.OutcomeRollbackRequired)
	return &RollbackError{
		HeightLost: player.Height,
		StreakLost: player.Streak,
		DaysMissed: missed,
	}
}

// AcknowledgeRollback commits a pending rollback: the player's height and
// streak drop to zero and the death count rises by one. A player already at
// zero height is returned unchanged. localDate is optional and only used
// to size a death that no push attempt recorded.
func (e *Engine) AcknowledgeRollback(ctx context.Context, id model.PlayerID, localDate string) (*model.Player, error) {
	player, err := e.storage.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if player.Height == 0 {
		return player, nil
	}

	missed := 1
	if localDate != "" && calendar.IsValidDate(localDate) {
		if cmp, err := calendar.Compare(localDate, player.LastPlayedDate); err == nil && cmp > 0 {
			missed = daysMissed(player.LastPlayedDate, localDate)
		}
	}

	now := e.clock.Now()
	death := &model.DeathEvent{
		PlayerID:       player.ID,
		HeightLost:     player.Height,
		StreakLost:     player.Streak,
		DaysMissed:     missed,
		LastPlayedDate: player.LastPlayedDate,
		CreatedAt:      now,
	}

	heightLost := player.Height
	player.Height = 0
	player.Streak = 0
	player.DeathCount++
	player.UpdatedAt = now

	stored, err := e.storage.CommitRollback(ctx, player, death)
	if err != nil {
		if !errors.Is(err, model.ErrConcurrentUpdate) {
			e.logger.Error("failed to commit rollback", "player_id", id, "error", err)
		}
		return nil, err
	}

	e.metrics.RecordRollbackAcknowledged()
	e.logger.Info("rollback acknowledged",
		"player_id", player.ID,
		"height_lost", heightLost,
		"death_id", stored.ID,
		"death_count", player.DeathCount,
	)
	return player, nil
}
