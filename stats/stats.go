/*
Package stats holds the learner XP aggregate.

PURPOSE:
  XP lives outside the coin ledger: it is a monotonically growing progress
  counter, not spendable currency. The reward-claim flow awards XP here
  once per successful claim, symmetrically with the coin credit.

LEVELING:
  Level is derived, never stored independently: 1 + TotalXP / 1000.

SEE ALSO:
  - submission/workflow.go: The StatsSink caller
  - store/sqlite: Persistence
*/
package stats

import (
	"context"
	"time"

	"github.com/gamilit/economy-engine/economy"
)

// XPPerLevel is the flat XP cost of each level.
const XPPerLevel int64 = 1000

// Stats is the per-learner progress aggregate.
type Stats struct {
	AccountID          economy.AccountID
	TotalXP            int64
	ExercisesCompleted int
	UpdatedAt          time.Time
}

// Level derives the learner level from total XP.
func (s Stats) Level() int {
	return 1 + int(s.TotalXP/XPPerLevel)
}

// Store persists the aggregate.
type Store interface {
	// GetStats returns the record, or (nil, nil) if the learner has none yet.
	GetStats(ctx context.Context, account economy.AccountID) (*Stats, error)

	// AddXP atomically increments the learner's XP (creating the record at
	// zero first if needed) and bumps the completed-exercise counter.
	AddXP(ctx context.Context, account economy.AccountID, amount int64) error
}
