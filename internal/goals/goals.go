// Package goals watches daily nutrition totals against a user's targets and
// fans out milestone notifications to registered observers.
package goals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GoalType identifies which daily target a milestone refers to.
type GoalType string

const (
	GoalCalories GoalType = "calories"
	GoalProtein  GoalType = "protein"
	GoalCarbs    GoalType = "carbs"
	GoalFat      GoalType = "fat"
)

// Unit returns the display unit for the goal's values.
func (g GoalType) Unit() string {
	if g == GoalCalories {
		return "kcal"
	}
	return "g"
}

// Milestone tiers, highest first. A goal check fires at most the single
// matching tier.
const (
	MilestoneReached = "100%"
	MilestoneNinety  = "90%"
	MilestoneEighty  = "80%"
)

// Achievement describes one fired milestone.
type Achievement struct {
	GoalType    GoalType  `json:"goal_type"`
	GoalValue   float64   `json:"goal_value"`
	ActualValue float64   `json:"actual_value"`
	Percentage  float64   `json:"percentage"`
	Date        string    `json:"date"`
	Milestone   string    `json:"milestone"`
	AchievedAt  time.Time `json:"achieved_at"`
}

// Targets holds a user's daily goals, usually sourced from the profile.
type Targets struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// DailyTotals holds the running consumption for a day.
type DailyTotals struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// Observer receives fired achievements. Implementations must be safe for
// concurrent use; a returned error is logged and never propagated to the
// flow that triggered the check.
type Observer interface {
	Notify(userID uuid.UUID, achievement Achievement) error
}

// Title renders a short human-readable headline for the achievement.
func (a Achievement) Title() string {
	switch a.Milestone {
	case MilestoneReached:
		return fmt.Sprintf("Daily %s goal reached!", a.GoalType)
	case MilestoneNinety:
		return fmt.Sprintf("90%% of your %s goal", a.GoalType)
	default:
		return fmt.Sprintf("80%% of your %s goal", a.GoalType)
	}
}

// Message renders the detail line shown under the title.
func (a Achievement) Message() string {
	return fmt.Sprintf("You've logged %.1f of %.1f %s (%.1f%%).",
		a.ActualValue, a.GoalValue, a.GoalType.Unit(), a.Percentage)
}
