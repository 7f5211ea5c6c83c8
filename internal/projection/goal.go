package projection

import "fmt"

// GoalStatus is the feasibility verdict for the desired grade.
type GoalStatus int

const (
	GoalEmpty GoalStatus = iota
	GoalLikely
	GoalUnlikely
	GoalUnachievable
	GoalFail
)

var goalStatusNames = [...]string{"empty", "likely", "unlikely", "unachievable", "fail"}

func (s GoalStatus) String() string {
	if s < GoalEmpty || s > GoalFail {
		return fmt.Sprintf("GoalStatus(%d)", int(s))
	}
	return goalStatusNames[s]
}

// MarshalText encodes the status by name.
func (s GoalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MessageKey is the localization key of the status message.
func (s GoalStatus) MessageKey() string {
	return "goal_" + s.String()
}

// Tone is the banner styling for the status.
func (s GoalStatus) Tone() string {
	switch s {
	case GoalLikely:
		return "success"
	case GoalUnachievable, GoalFail:
		return "danger"
	default:
		return "warning"
	}
}

// MaxGoal is the highest selectable goal value; 1 is the best grade and
// failing is never a goal.
const MaxGoal = 4

// EvaluateGoal decides how reachable desired is. Grades run from 1 (best) to
// 5, so a goal is within reach when it is numerically >= bestPossible. An
// unknown bestPossible (nothing mandatory to grade against yet) counts as within
// reach, so the result then depends only on estimated.
func EvaluateGoal(desired int, bestPossible, estimated Grade) GoalStatus {
	switch {
	case desired == 0:
		return GoalEmpty
	case !bestPossible.Known() || Grade(desired) >= bestPossible:
		if estimated.Known() && Grade(desired) >= estimated {
			return GoalLikely
		}
		return GoalUnlikely
	case bestPossible < GradeFail:
		return GoalUnachievable
	default:
		return GoalFail
	}
}

// GoalOption is one entry of the goal selection.
type GoalOption struct {
	Grade    int  `json:"grade" yaml:"grade"`
	Selected bool `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// GoalBanner is the rendered goal state.
type GoalBanner struct {
	Desired int        `json:"desired" yaml:"desired"`
	Status  GoalStatus `json:"status" yaml:"status"`
	Message string     `json:"message" yaml:"message"`
	Tone    string     `json:"tone" yaml:"tone"`
}

func goalOptions(desired int) []GoalOption {
	options := make([]GoalOption, MaxGoal)
	for i := range options {
		options[i] = GoalOption{Grade: i + 1, Selected: desired == i+1}
	}
	return options
}

func goalBanner(desired int, status GoalStatus, l Localizer) GoalBanner {
	return GoalBanner{Desired: desired, Status: status, Message: l.Message(status.MessageKey()), Tone: status.Tone()}
}
