package progression

import (
	"fmt"

	"github.com/mcoot/boulder/internal/model"
)

// RollbackError reports a missed interval the client must acknowledge
// before pushing again
type RollbackError struct {
	HeightLost int
	StreakLost int
	DaysMissed int
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback required: %d days missed, height %d lost", e.DaysMissed, e.HeightLost)
}

// Unwrap lets errors.Is match model.ErrRollbackRequired
func (e *RollbackError) Unwrap() error {
	return model.ErrRollbackRequired
}
