package goals

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker evaluates daily totals against targets and dispatches milestone
// achievements to its observers exactly once per user, goal, date and tier.
//
// The dedup set lives in process memory and is never trimmed; at one entry
// per fired milestone the footprint stays negligible for the process
// lifetimes we run.
type Tracker struct {
	mu        sync.Mutex
	observers []Observer
	seen      map[string]struct{}
	nowFn     func() time.Time
}

func NewTracker(observers ...Observer) *Tracker {
	return &Tracker{
		observers: observers,
		seen:      make(map[string]struct{}),
		nowFn:     time.Now,
	}
}

// Register adds an observer. Not safe to call concurrently with CheckGoals.
func (t *Tracker) Register(o Observer) {
	t.observers = append(t.observers, o)
}

// CheckGoals compares totals against targets for the given day and notifies
// observers of newly crossed milestones. Goals at or below zero are skipped.
// Each goal fires at most its single highest matching tier per call.
func (t *Tracker) CheckGoals(userID uuid.UUID, totals DailyTotals, targets Targets, date string) {
	checks := []struct {
		goal   GoalType
		actual float64
		target float64
	}{
		{GoalCalories, totals.Calories, targets.Calories},
		{GoalProtein, totals.Protein, targets.Protein},
		{GoalCarbs, totals.Carbs, targets.Carbs},
		{GoalFat, totals.Fat, targets.Fat},
	}

	for _, c := range checks {
		if c.target <= 0 {
			continue
		}
		pct := math.Round(c.actual/c.target*1000) / 10
		milestone := tierFor(pct)
		if milestone == "" {
			continue
		}
		if !t.markSeen(userID, c.goal, date, milestone) {
			continue
		}
		t.dispatch(userID, Achievement{
			GoalType:    c.goal,
			GoalValue:   c.target,
			ActualValue: math.Round(c.actual*10) / 10,
			Percentage:  pct,
			Date:        date,
			Milestone:   milestone,
			AchievedAt:  t.nowFn(),
		})
	}
}

func tierFor(pct float64) string {
	switch {
	case pct >= 100:
		return MilestoneReached
	case pct >= 90:
		return MilestoneNinety
	case pct >= 80:
		return MilestoneEighty
	default:
		return ""
	}
}

// markSeen records the milestone and reports whether it was new.
func (t *Tracker) markSeen(userID uuid.UUID, goal GoalType, date, milestone string) bool {
	key := fmt.Sprintf("%s_%s_%s", userID, goal, date)
	switch milestone {
	case MilestoneNinety:
		key += "_90"
	case MilestoneEighty:
		key += "_80"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[key]; ok {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

// dispatch notifies observers in registration order. A failing observer is
// logged and skipped so the rest still run.
func (t *Tracker) dispatch(userID uuid.UUID, a Achievement) {
	for _, o := range t.observers {
		if err := o.Notify(userID, a); err != nil {
			log.Printf("[GOALS] observer %T failed for user %s: %v", o, userID, err)
		}
	}
}

// LogObserver writes achievements to the process log.
type LogObserver struct{}

func (LogObserver) Notify(userID uuid.UUID, a Achievement) error {
	log.Printf("[GOALS] user %s hit %s of %s goal on %s (%.1f/%.1f %s)",
		userID, a.Milestone, a.GoalType, a.Date, a.ActualValue, a.GoalValue, a.GoalType.Unit())
	return nil
}
