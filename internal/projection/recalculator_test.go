package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grademonitor-api/internal/models"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// twoItemState is the 80/100 graded plus 60% of 50 estimated course.
func twoItemState(t *testing.T) *State {
	t.Helper()
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 11, Name: "Exam", MaxScore: 100, Score: ptr(80)},
			{ID: 12, Name: "Project", MaxScore: 50, Estimation: ptr(60), Checked: true},
		},
	}
	return NewState(in, stubLocalizer{})
}

func TestStateTwoItemCourse(t *testing.T) {
	s := twoItemState(t)
	agg := s.Aggregates()

	assert.Equal(t, PointsFrom(80), agg.Score)
	assert.Equal(t, PointsFrom(100), agg.MaxScore)
	assert.Equal(t, PointsFrom(110), agg.Estimation)
	assert.Equal(t, PointsFrom(150), agg.MaxEstimate)

	c := s.Composite()
	assert.Equal(t, Grade(2), c.Current)
	assert.Equal(t, Grade(3), c.SelfEstimation)
	assert.Equal(t, Grade(2), c.BestPossible)
	assert.Equal(t, GradeUnknown, c.Average)

	v := s.View()
	assert.Equal(t, "2", v.Current)
	assert.Equal(t, "3", v.SelfEstimation)
	assert.Equal(t, NoValue, v.Average)
	require.Len(t, v.Rows, 2)
	assert.Equal(t, 67, v.Rows[0].Weight)
	assert.Equal(t, 33, v.Rows[1].Weight)
	assert.Equal(t, "66.7", v.GradeCompletion)
	assert.Equal(t, "2", v.Rows[0].Result)
	assert.Equal(t, "4", v.Rows[1].Estimation)
}

func TestSetEstimateAppliesOnlyDelta(t *testing.T) {
	s := twoItemState(t)
	before := s.Aggregates()

	u, err := s.Apply(SetEstimate{Index: 1, Percent: 90})
	require.NoError(t, err)

	after := s.Aggregates()
	assert.Equal(t, PointsFrom(15), after.Estimation-before.Estimation)
	assert.Equal(t, PointsFrom(125), after.Estimation)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.MaxEstimate, after.MaxEstimate)

	assert.Equal(t, Grade(2), u.EstimatedGrade)
	assert.Equal(t, "2", u.SelfEstimation)
	require.NotNil(t, u.Row)
	assert.Equal(t, 90.0, u.Row.Value)
	assert.Equal(t, "1", u.Row.Estimation)
	assert.Nil(t, u.Included)
	require.NotNil(t, u.Estimation)
	assert.Equal(t, 90.0, *u.Estimation)
	require.Len(t, u.Events, 1)
	assert.Equal(t, models.LogKindChange, u.Events[0].Kind)
	assert.Equal(t, int64(12), *u.Events[0].ItemID)
}

func TestDoubleToggleRestoresAggregates(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 1, MaxScore: 33.3, Score: ptr(21.7)},
			{ID: 2, MaxScore: 17.9, Estimation: ptr(63)},
			{ID: 3, MaxScore: 12.1, Estimation: ptr(71), Optional: true},
			{ID: 4, MaxScore: 41.3, Estimation: ptr(33), Checked: true},
		},
	}
	s := NewState(in, stubLocalizer{})

	for _, idx := range []int{1, 2} {
		before := s.Aggregates()
		_, err := s.Apply(SetIncluded{Index: idx, Included: true})
		require.NoError(t, err)
		assert.NotEqual(t, before, s.Aggregates())
		_, err = s.Apply(SetIncluded{Index: idx, Included: false})
		require.NoError(t, err)
		assert.Equal(t, before, s.Aggregates())
	}

	before := s.Aggregates()
	_, err := s.Apply(SetIncluded{Index: 3, Included: false})
	require.NoError(t, err)
	_, err = s.Apply(SetIncluded{Index: 3, Included: true})
	require.NoError(t, err)
	assert.Equal(t, before, s.Aggregates())
}

func TestToggleOptionalUpdatesShadowAggregate(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 1, MaxScore: 100, Score: ptr(60)},
			{ID: 2, MaxScore: 10, Estimation: ptr(50), Optional: true},
		},
	}
	s := NewState(in, stubLocalizer{})
	before := s.Aggregates()

	u, err := s.Apply(SetIncluded{Index: 1, Included: true})
	require.NoError(t, err)

	after := s.Aggregates()
	assert.Equal(t, PointsFrom(5), after.OptionalEstimation-before.OptionalEstimation)
	assert.Equal(t, PointsFrom(5), after.Estimation-before.Estimation)
	assert.Equal(t, before.MaxEstimate, after.MaxEstimate)
	require.NotNil(t, u.Included)
	assert.True(t, *u.Included)
	assert.Equal(t, "5 pts", u.Row.Estimation)
}

func TestEstimateOnExcludedItemIncludesIt(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items:  []Item{{ID: 7, MaxScore: 20, Estimation: ptr(50)}},
	}
	s := NewState(in, stubLocalizer{})
	assert.Equal(t, GradeUnknown, s.Composite().SelfEstimation)

	u, err := s.Apply(SetEstimate{Index: 0, Percent: 85})
	require.NoError(t, err)

	assert.Equal(t, PointsFrom(17), s.Aggregates().Estimation)
	assert.Equal(t, PointsFrom(20), s.Aggregates().MaxEstimate)
	assert.Equal(t, Grade(2), u.EstimatedGrade)
	require.NotNil(t, u.Included)
	assert.True(t, *u.Included)
	require.Len(t, u.Events, 2)
	assert.Equal(t, models.LogKindInclude, u.Events[0].Kind)
	assert.Equal(t, models.LogKindChange, u.Events[1].Kind)
}

func TestExcludingLastMandatoryItemYieldsUnknown(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 1, MaxScore: 40, Estimation: ptr(90), Checked: true},
			{ID: 2, MaxScore: 10, Estimation: ptr(100), Optional: true, Checked: true},
		},
	}
	s := NewState(in, stubLocalizer{})
	require.Equal(t, Grade(1), s.Composite().SelfEstimation)

	u, err := s.Apply(SetIncluded{Index: 0, Included: false})
	require.NoError(t, err)
	assert.Equal(t, GradeUnknown, u.EstimatedGrade)
	assert.Equal(t, NoValue, u.SelfEstimation)
}

func TestOptionalOnlyCourseHasNoGrades(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items:  []Item{{ID: 1, MaxScore: 10, Score: ptr(4), ClassAverage: ptr(6), Optional: true}},
	}
	s := NewState(in, stubLocalizer{})
	c := s.Composite()
	assert.Equal(t, GradeUnknown, c.Current)
	assert.Equal(t, GradeUnknown, c.BestPossible)
	assert.Equal(t, GradeUnknown, c.Average)

	v := s.View()
	assert.Equal(t, 0, v.Rows[0].Weight)
	assert.Equal(t, "6 pts", v.Rows[0].Average)
	assert.Equal(t, "4 pts", v.Rows[0].Result)
	assert.Equal(t, "0", v.GradeCompletion)
}

func TestApplyRejectsInvalidEdits(t *testing.T) {
	s := twoItemState(t)

	_, err := s.Apply(SetEstimate{Index: 0, Percent: 50})
	assert.ErrorIs(t, err, appErrors.ErrItemAssessed)

	_, err = s.Apply(SetIncluded{Index: 5, Included: true})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = s.Apply(SetEstimate{Index: 1, Percent: 101})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = s.Apply(SetGoal{Grade: 5})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSetIncludedNoop(t *testing.T) {
	s := twoItemState(t)
	u, err := s.Apply(SetIncluded{Index: 1, Included: true})
	require.NoError(t, err)
	assert.Nil(t, u.Row)
	assert.Nil(t, u.Goal)
	assert.Empty(t, u.Events)
}

func TestGoalReevaluatedOnlyOnChange(t *testing.T) {
	s := twoItemState(t)

	u, err := s.Apply(SetGoal{Grade: 2})
	require.NoError(t, err)
	require.NotNil(t, u.Goal)
	assert.Equal(t, GoalUnlikely, u.Goal.Status)
	assert.Equal(t, "warning", u.Goal.Tone)
	require.NotNil(t, u.DesiredGoal)
	assert.Equal(t, 2, *u.DesiredGoal)

	// 61% keeps the estimate at grade 3.
	u, err = s.Apply(SetEstimate{Index: 1, Percent: 61})
	require.NoError(t, err)
	assert.Nil(t, u.Goal)

	u, err = s.Apply(SetEstimate{Index: 1, Percent: 90})
	require.NoError(t, err)
	require.NotNil(t, u.Goal)
	assert.Equal(t, GoalLikely, u.Goal.Status)

	desired, status := s.Goal()
	assert.Equal(t, 2, desired)
	assert.Equal(t, GoalLikely, status)
}

func TestSchemeNoticeDismissal(t *testing.T) {
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Input{Scheme: DefaultScheme(), LastSchemeUpdate: &updated}
	s := NewState(in, stubLocalizer{})

	v := s.View()
	require.NotNil(t, v.SchemeNotice)
	assert.Equal(t, "2024-03-01", v.SchemeNotice.Date)

	u, err := s.Apply(DismissSchemeNotice{})
	require.NoError(t, err)
	assert.True(t, u.SchemeUpdateSeen)
	assert.Nil(t, s.View().SchemeNotice)

	u, err = s.Apply(DismissSchemeNotice{})
	require.NoError(t, err)
	assert.False(t, u.SchemeUpdateSeen)
	assert.Empty(t, u.Events)
}

func TestSetShowAverageLogsEvent(t *testing.T) {
	s := twoItemState(t)
	u, err := s.Apply(SetShowAverage{Show: false})
	require.NoError(t, err)
	require.NotNil(t, u.ShowAverage)
	assert.False(t, *u.ShowAverage)
	require.Len(t, u.Events, 1)
	assert.Equal(t, models.LogKindHide, u.Events[0].Kind)
	assert.Equal(t, models.LogCategoryCourseAverage, u.Events[0].Category)
	assert.False(t, s.View().ShowAverage)
}

func TestGoalOptionsMarkSelection(t *testing.T) {
	in := Input{Scheme: DefaultScheme(), Goal: 3}
	v := NewState(in, stubLocalizer{}).View()
	require.Len(t, v.GoalOptions, MaxGoal)
	for _, opt := range v.GoalOptions {
		assert.Equal(t, opt.Grade == 3, opt.Selected)
	}
}

func TestInputFromDataset(t *testing.T) {
	ds := models.Dataset{
		Items: models.DatasetItems{
			IDs:             []int64{1, 2, 3},
			Names:           []string{"a", "b", "c"},
			MaxScores:       []float64{10, 20, 5},
			Scores:          []*float64{ptr(8), nil, nil},
			Estimations:     []*float64{nil, ptr(70), ptr(40)},
			OptionalIndexes: []int{2},
			CheckedIndexes:  []int{1},
		},
		Goal: 2,
	}
	in, err := InputFromDataset(ds)
	require.NoError(t, err)
	assert.Equal(t, DefaultScheme(), in.Scheme)
	require.Len(t, in.Items, 3)
	assert.True(t, in.Items[0].Assessed())
	assert.True(t, in.Items[1].Checked)
	assert.True(t, in.Items[2].Optional)

	ds.Items.CheckedIndexes = []int{9}
	_, err = InputFromDataset(ds)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	ds.Items.CheckedIndexes = nil
	ds.Scheme = []float64{90, 80, 70, 50}
	_, err = InputFromDataset(ds)
	assert.ErrorIs(t, err, appErrors.ErrInvalidScheme)
}

func TestCheckedItemWithoutEstimateIsNotCounted(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 1, MaxScore: 100, Score: ptr(80)},
			{ID: 2, MaxScore: 50, Checked: true},
		},
	}
	s := NewState(in, stubLocalizer{})
	before := s.Aggregates()
	assert.Equal(t, PointsFrom(100), before.MaxEstimate)
	assert.Equal(t, Grade(2), s.Composite().SelfEstimation)
	assert.False(t, s.View().Rows[1].Checked)

	u, err := s.Apply(SetIncluded{Index: 1, Included: false})
	require.NoError(t, err)
	assert.Empty(t, u.Events)
	assert.Equal(t, before, s.Aggregates())
	assert.Equal(t, Grade(2), u.EstimatedGrade)

	_, err = s.Apply(SetIncluded{Index: 1, Included: true})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, before, s.Aggregates())

	u, err = s.Apply(SetEstimate{Index: 1, Percent: 40})
	require.NoError(t, err)
	assert.Equal(t, PointsFrom(150), s.Aggregates().MaxEstimate)
	assert.Equal(t, PointsFrom(100), s.Aggregates().Estimation)

	_, err = s.Apply(SetIncluded{Index: 1, Included: false})
	require.NoError(t, err)
	assert.Equal(t, before, s.Aggregates())
}

func TestItemsFromDatasetDropsCheckedWithoutEstimate(t *testing.T) {
	items, err := ItemsFromDataset(models.DatasetItems{
		IDs:            []int64{1, 2},
		Names:          []string{"a", "b"},
		MaxScores:      []float64{10, 20},
		Estimations:    []*float64{nil, ptr(50)},
		CheckedIndexes: []int{0, 1},
	})
	require.NoError(t, err)
	assert.False(t, items[0].Checked)
	assert.True(t, items[1].Checked)
}

func TestOptionalEstimatedRow(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 1, MaxScore: 80, Score: ptr(60)},
			{ID: 2, MaxScore: 20, Estimation: ptr(50)},
			{ID: 3, MaxScore: 10, Estimation: ptr(30), Optional: true, Checked: true},
		},
	}
	rows := NewState(in, stubLocalizer{}).View().Rows
	require.Len(t, rows, 3)

	optional := rows[2]
	assert.True(t, optional.Optional)
	assert.False(t, optional.Assessed)
	assert.Equal(t, 30.0, optional.Value)
	assert.Equal(t, "3 pts", optional.Estimation)
	assert.Empty(t, optional.Result)
}

func TestOptionalWeightBypassesRounder(t *testing.T) {
	in := Input{
		Scheme: DefaultScheme(),
		Items: []Item{
			{ID: 1, MaxScore: 30, Estimation: ptr(50)},
			{ID: 2, MaxScore: 15, Estimation: ptr(50), Optional: true},
			{ID: 3, MaxScore: 30, Estimation: ptr(50)},
			{ID: 4, MaxScore: 30, Estimation: ptr(50)},
		},
	}
	rows := NewState(in, stubLocalizer{}).View().Rows

	// Mandatory thirds round as a group to 33, 34, 33.
	assert.Equal(t, 33, rows[0].Weight)
	assert.Equal(t, 34, rows[2].Weight)
	assert.Equal(t, 33, rows[3].Weight)
	assert.Equal(t, 100, rows[0].Weight+rows[2].Weight+rows[3].Weight)
	// 15 of 90 mandatory points is 16.7%, rounded on its own.
	assert.Equal(t, 17, rows[1].Weight)
}
