package projection

import (
	"math"

	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// Grade is a discrete course grade, 1 (best) to 5 (fail).
type Grade int

// GradeUnknown marks a grade that cannot be determined from the data at hand.
const GradeUnknown Grade = 0

// GradeFail is the fallback grade below the lowest threshold.
const GradeFail Grade = 5

// Known reports whether the grade carries a value.
func (g Grade) Known() bool {
	return g >= 1 && g <= GradeFail
}

// Scheme holds the minimum percentages for the grades 4, 3, 2 and 1, ascending.
type Scheme [4]float64

// DefaultScheme is used when a course defines no grade letters of its own.
func DefaultScheme() Scheme {
	return Scheme{50, 70, 80, 90}
}

// NewScheme validates thresholds and builds a Scheme.
func NewScheme(thresholds []float64) (Scheme, error) {
	var s Scheme
	if len(thresholds) != len(s) {
		return s, appErrors.Clone(appErrors.ErrInvalidScheme, "scheme requires exactly four thresholds")
	}
	for i, t := range thresholds {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return s, appErrors.Clone(appErrors.ErrInvalidScheme, "scheme thresholds must be finite")
		}
		if i > 0 && t <= thresholds[i-1] {
			return s, appErrors.Clone(appErrors.ErrInvalidScheme, "scheme thresholds must be strictly ascending")
		}
		s[i] = t
	}
	return s, nil
}

// GradeFromPercent classifies a percentage. Thresholds are inclusive.
func (s Scheme) GradeFromPercent(percent float64) Grade {
	if percent >= s[3] {
		return 1
	}
	i := 0
	for percent >= s[i] {
		i++
	}
	return Grade(5 - i)
}

// GradeFromScore classifies score as a share of maxScore. A non-positive
// maxScore yields GradeUnknown.
func (s Scheme) GradeFromScore(score, maxScore float64) Grade {
	if maxScore <= 0 {
		return GradeUnknown
	}
	return s.GradeFromPercent(score * 100 / maxScore)
}

func (s Scheme) gradeFromPoints(score, maxScore Points) Grade {
	if maxScore <= 0 {
		return GradeUnknown
	}
	return s.GradeFromScore(score.Float(), maxScore.Float())
}
