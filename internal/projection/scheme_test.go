package projection

import (
	"math"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

type stubLocalizer struct{}

func (stubLocalizer) Number(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func (l stubLocalizer) Points(v float64) string { return l.Number(v) + " pts" }

func (stubLocalizer) Date(t time.Time) string { return t.Format("2006-01-02") }

func (stubLocalizer) Message(key string) string { return key }

func ptr(v float64) *float64 { return &v }

func TestGradeFromPercentThresholds(t *testing.T) {
	s := DefaultScheme()
	for i, threshold := range s {
		assert.Equal(t, Grade(4-i), s.GradeFromPercent(threshold), "threshold %v", threshold)
	}
	assert.Equal(t, GradeFail, s.GradeFromPercent(49.99))
	assert.Equal(t, GradeFail, s.GradeFromPercent(0))
	assert.Equal(t, Grade(1), s.GradeFromPercent(100))
	assert.Equal(t, Grade(1), s.GradeFromPercent(150))
}

func TestGradeFromPercentMonotonic(t *testing.T) {
	s := Scheme{40, 55, 72.5, 88}
	previous := s.GradeFromPercent(0)
	for p := 0.0; p <= 110; p += 0.25 {
		g := s.GradeFromPercent(p)
		assert.LessOrEqual(t, g, previous, "percent %v", p)
		previous = g
	}
}

func TestGradeFromScoreZeroMax(t *testing.T) {
	s := DefaultScheme()
	assert.Equal(t, GradeUnknown, s.GradeFromScore(10, 0))
	assert.Equal(t, Grade(2), s.GradeFromScore(80, 100))
	assert.False(t, GradeUnknown.Known())
}

func TestNewScheme(t *testing.T) {
	s, err := NewScheme([]float64{45, 60, 75, 90})
	require.NoError(t, err)
	assert.Equal(t, Scheme{45, 60, 75, 90}, s)

	cases := map[string][]float64{
		"too short":     {50, 70, 80},
		"not ascending": {50, 80, 70, 90},
		"duplicate":     {50, 70, 70, 90},
		"nan":           {50, math.NaN(), 80, 90},
	}
	for name, thresholds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewScheme(thresholds)
			assert.ErrorIs(t, err, appErrors.ErrInvalidScheme)
		})
	}
}

func TestPercentRounderThirds(t *testing.T) {
	var r PercentRounder
	third := 100.0 / 3
	got := []int{r.Round(third), r.Round(third), r.Round(third)}
	assert.Equal(t, []int{33, 34, 33}, got)

	r.Reset()
	assert.Equal(t, 13, r.Round(12.5))
	assert.Equal(t, 12, r.Round(12.5))
}

func TestPercentRounderGroupSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		n := 1 + rng.Intn(12)
		raw := make([]float64, n)
		total := 0.0
		for i := range raw {
			raw[i] = rng.Float64()
			total += raw[i]
		}
		budget := rng.Float64() * 100

		var r PercentRounder
		sum, trueSum := 0, 0.0
		for _, v := range raw {
			share := v / total * budget
			trueSum += share
			rounded := r.Round(share)
			assert.Less(t, math.Abs(float64(rounded)-share), 1.0)
			sum += rounded
		}
		assert.Equal(t, int(math.Round(trueSum)), sum)
	}
}

func TestEffectiveGrade(t *testing.T) {
	s := DefaultScheme()
	p := PointsFrom

	// Failing mandatory work gets no optional credit.
	assert.Equal(t, GradeFail, s.EffectiveGrade(p(60), p(15), p(100)))
	assert.Equal(t, GradeFail, s.EffectiveGrade(p(49), p(0), p(100)))
	// Passing mandatory work counts optional credit.
	assert.Equal(t, Grade(3), s.EffectiveGrade(p(75), p(10), p(100)))
	assert.Equal(t, Grade(1), s.EffectiveGrade(p(95), p(30), p(100)))
	assert.Equal(t, GradeUnknown, s.EffectiveGrade(p(10), p(0), 0))
}

func TestEffectiveGradeNeverBeatsFullCredit(t *testing.T) {
	s := DefaultScheme()
	for mandatory := 0.0; mandatory <= 100; mandatory += 5 {
		for optional := 0.0; optional <= 30; optional += 5 {
			points := PointsFrom(mandatory + optional)
			got := s.EffectiveGrade(points, PointsFrom(optional), PointsFrom(100))
			assert.GreaterOrEqual(t, got, s.GradeFromScore(mandatory+optional, 100))
			if s.GradeFromScore(mandatory, 100) == GradeFail {
				assert.Equal(t, GradeFail, got)
			}
		}
	}
}

func TestEvaluateGoal(t *testing.T) {
	cases := []struct {
		name      string
		desired   int
		best      Grade
		estimated Grade
		want      GoalStatus
	}{
		{"unset", 0, 1, 1, GoalEmpty},
		{"unset with failing ceiling", 0, 5, GradeUnknown, GoalEmpty},
		{"likely", 2, 2, 1, GoalLikely},
		{"unlikely", 2, 2, 3, GoalUnlikely},
		{"unlikely without estimate", 3, 2, GradeUnknown, GoalUnlikely},
		{"unachievable", 1, 3, 1, GoalUnachievable},
		{"fail", 1, 5, 5, GoalFail},
		{"unknown ceiling", 3, GradeUnknown, 2, GoalLikely},
		{"unknown ceiling without estimate", 2, GradeUnknown, GradeUnknown, GoalUnlikely},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateGoal(tc.desired, tc.best, tc.estimated))
		})
	}
}

func TestGoalStatusPresentation(t *testing.T) {
	assert.Equal(t, "goal_likely", GoalLikely.MessageKey())
	assert.Equal(t, "success", GoalLikely.Tone())
	assert.Equal(t, "warning", GoalUnlikely.Tone())
	assert.Equal(t, "danger", GoalFail.Tone())
	text, err := GoalUnachievable.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "unachievable", string(text))
}
