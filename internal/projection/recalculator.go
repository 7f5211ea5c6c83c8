package projection

import (
	"fmt"
	"time"

	"github.com/noah-isme/grademonitor-api/internal/models"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// Input is the data a State is built from.
type Input struct {
	Items            []Item
	Scheme           Scheme
	Goal             int
	ShowAverage      bool
	LastSchemeUpdate *time.Time
}

// InputFromDataset validates a dataset and converts it into an Input.
func InputFromDataset(ds models.Dataset) (Input, error) {
	items, err := ItemsFromDataset(ds.Items)
	if err != nil {
		return Input{}, err
	}
	scheme := DefaultScheme()
	if len(ds.Scheme) > 0 {
		if scheme, err = NewScheme(ds.Scheme); err != nil {
			return Input{}, err
		}
	}
	if ds.Goal < 0 || ds.Goal > MaxGoal {
		return Input{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("goal must be between 0 and %d", MaxGoal))
	}
	return Input{
		Items:            items,
		Scheme:           scheme,
		Goal:             ds.Goal,
		ShowAverage:      ds.ShowAverage,
		LastSchemeUpdate: ds.LastSchemeUpdate,
	}, nil
}

// State is the owned, mutable projection of one course for one student.
// It is not safe for concurrent use.
type State struct {
	scheme    Scheme
	items     []Item
	totals    Totals
	agg       Aggregates
	estimates map[int]float64
	composite Composite
	table     Table

	goal   int
	status GoalStatus

	showAverage  bool
	schemeUpdate *time.Time
	schemeSeen   bool

	l Localizer
}

// NewState runs the item and aggregate passes and evaluates the goal.
func NewState(in Input, l Localizer) *State {
	items := make([]Item, len(in.Items))
	copy(items, in.Items)
	for i := range items {
		if items[i].Checked && !items[i].Assessed() && !items[i].Estimated() {
			items[i].Checked = false
		}
	}

	totals := ComputeTotals(items)
	acc := Accumulate(items, totals)
	s := &State{
		scheme:       in.Scheme,
		items:        items,
		totals:       totals,
		agg:          acc.Aggregates,
		estimates:    acc.IndexToEstimate,
		composite:    in.Scheme.Composite(acc.Aggregates, totals),
		table:        Project(items, in.Scheme, totals, l),
		goal:         in.Goal,
		showAverage:  in.ShowAverage,
		schemeUpdate: in.LastSchemeUpdate,
		l:            l,
	}
	s.status = EvaluateGoal(s.goal, s.composite.BestPossible, s.composite.SelfEstimation)
	return s
}

// Aggregates returns a copy of the running aggregates.
func (s *State) Aggregates() Aggregates {
	return s.agg
}

// Totals returns the constant point sums.
func (s *State) Totals() Totals {
	return s.totals
}

// Composite returns the current composite grades.
func (s *State) Composite() Composite {
	return s.composite
}

// Goal returns the desired grade and its status.
func (s *State) Goal() (int, GoalStatus) {
	return s.goal, s.status
}

// Items returns a copy of the items with their current estimates and flags.
func (s *State) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// SchemeNotice tells the student that the grading scheme changed.
type SchemeNotice struct {
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
	Date      string    `json:"date" yaml:"date"`
	Message   string    `json:"message" yaml:"message"`
}

// View is the full view model handed to renderers.
type View struct {
	Rows            []Row         `json:"rows" yaml:"rows"`
	GradeCompletion string        `json:"gradeCompletion" yaml:"gradeCompletion"`
	Scheme          Scheme        `json:"scheme" yaml:"scheme"`
	Grades          Composite     `json:"grades" yaml:"grades"`
	Average         string        `json:"average" yaml:"average"`
	Current         string        `json:"current" yaml:"current"`
	SelfEstimation  string        `json:"selfEstimation" yaml:"selfEstimation"`
	BestPossible    string        `json:"bestPossible" yaml:"bestPossible"`
	Goal            GoalBanner    `json:"goal" yaml:"goal"`
	GoalOptions     []GoalOption  `json:"goalOptions" yaml:"goalOptions"`
	ShowAverage     bool          `json:"showAverage" yaml:"showAverage"`
	SchemeNotice    *SchemeNotice `json:"schemeNotice,omitempty" yaml:"schemeNotice,omitempty"`
}

// View renders the current state.
func (s *State) View() View {
	rows := make([]Row, len(s.table.Rows))
	copy(rows, s.table.Rows)
	v := View{
		Rows:            rows,
		GradeCompletion: s.table.GradeCompletion,
		Scheme:          s.scheme,
		Grades:          s.composite,
		Average:         gradeText(s.composite.Average, s.l),
		Current:         gradeText(s.composite.Current, s.l),
		SelfEstimation:  gradeText(s.composite.SelfEstimation, s.l),
		BestPossible:    gradeText(s.composite.BestPossible, s.l),
		Goal:            goalBanner(s.goal, s.status, s.l),
		GoalOptions:     goalOptions(s.goal),
		ShowAverage:     s.showAverage,
	}
	if s.noticeShown() {
		v.SchemeNotice = &SchemeNotice{
			UpdatedAt: *s.schemeUpdate,
			Date:      s.l.Date(*s.schemeUpdate),
			Message:   s.l.Message("scheme_updated"),
		}
	}
	return v
}

func (s *State) noticeShown() bool {
	return s.schemeUpdate != nil && !s.schemeSeen
}

// Command is a single user edit.
type Command interface {
	command()
}

// SetEstimate changes the estimate of an ungraded item, including it if needed.
type SetEstimate struct {
	Index   int
	Percent float64
}

// SetIncluded includes or excludes an ungraded item from the self-estimate.
type SetIncluded struct {
	Index    int
	Included bool
}

// SetGoal selects the desired grade; 0 clears it.
type SetGoal struct {
	Grade int
}

// SetShowAverage shows or hides class averages.
type SetShowAverage struct {
	Show bool
}

// DismissSchemeNotice hides the scheme update notice.
type DismissSchemeNotice struct{}

func (SetEstimate) command()         {}
func (SetIncluded) command()         {}
func (SetGoal) command()             {}
func (SetShowAverage) command()      {}
func (DismissSchemeNotice) command() {}

// Update describes what one command changed. Nil fields were not touched.
type Update struct {
	Row            *Row        `json:"row,omitempty"`
	SelfEstimation string      `json:"selfEstimation"`
	EstimatedGrade Grade       `json:"estimatedGrade"`
	Goal           *GoalBanner `json:"goal,omitempty"`

	ItemID           int64             `json:"-"`
	Included         *bool             `json:"-"`
	Estimation       *float64          `json:"-"`
	DesiredGoal      *int              `json:"-"`
	ShowAverage      *bool             `json:"-"`
	SchemeUpdateSeen bool              `json:"-"`
	Events           []models.LogEntry `json:"-"`
}

// Apply executes cmd against the state. Only the edited item's contribution
// to the aggregates changes; other items are never revisited.
func (s *State) Apply(cmd Command) (Update, error) {
	var (
		u   Update
		err error
	)
	previous := s.composite.SelfEstimation
	goalChanged := false

	switch c := cmd.(type) {
	case SetEstimate:
		err = s.setEstimate(c, &u)
	case SetIncluded:
		err = s.setIncluded(c, &u)
	case SetGoal:
		if c.Grade < 0 || c.Grade > MaxGoal {
			return Update{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("goal must be between 0 and %d", MaxGoal))
		}
		s.goal = c.Grade
		goalChanged = true
		u.DesiredGoal = &c.Grade
		value := float64(c.Grade)
		u.Events = append(u.Events, models.LogEntry{Kind: models.LogKindChange, Category: models.LogCategoryGoal, Value: &value})
	case SetShowAverage:
		s.showAverage = c.Show
		u.ShowAverage = &c.Show
		kind := models.LogKindHide
		if c.Show {
			kind = models.LogKindShow
		}
		u.Events = append(u.Events, models.LogEntry{Kind: kind, Category: models.LogCategoryCourseAverage})
	case DismissSchemeNotice:
		if s.noticeShown() {
			s.schemeSeen = true
			u.SchemeUpdateSeen = true
			u.Events = append(u.Events, models.LogEntry{Kind: models.LogKindDismiss, Category: models.LogCategorySchemeUpdate})
		}
	default:
		return Update{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported command %T", cmd))
	}
	if err != nil {
		return Update{}, err
	}

	if u.Row != nil {
		s.composite.SelfEstimation = s.scheme.EstimatedGrade(s.agg)
	}
	if goalChanged || s.composite.SelfEstimation != previous {
		s.status = EvaluateGoal(s.goal, s.composite.BestPossible, s.composite.SelfEstimation)
		banner := goalBanner(s.goal, s.status, s.l)
		u.Goal = &banner
	}
	u.EstimatedGrade = s.composite.SelfEstimation
	u.SelfEstimation = gradeText(s.composite.SelfEstimation, s.l)
	return u, nil
}

func (s *State) editableItem(index int) (Item, error) {
	if index < 0 || index >= len(s.items) {
		return Item{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item index %d not found", index))
	}
	it := s.items[index]
	if it.Assessed() {
		return Item{}, appErrors.Clone(appErrors.ErrItemAssessed, fmt.Sprintf("item %d is already graded", it.ID))
	}
	return it, nil
}

func (s *State) setIncluded(c SetIncluded, u *Update) error {
	it, err := s.editableItem(c.Index)
	if err != nil {
		return err
	}
	if it.Checked == c.Included {
		return nil
	}
	if c.Included && !it.countable() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %d has no estimate to include", it.ID))
	}
	s.toggle(c.Index, c.Included, u)
	s.refreshRow(c.Index, u)
	return nil
}

func (s *State) setEstimate(c SetEstimate, u *Update) error {
	if c.Percent < 0 || c.Percent > 100 {
		return appErrors.Clone(appErrors.ErrValidation, "estimation must be between 0 and 100")
	}
	it, err := s.editableItem(c.Index)
	if err != nil {
		return err
	}
	if !it.Checked {
		s.toggle(c.Index, true, u)
	}

	old := s.estimates[c.Index]
	delta := it.estimatedPoints(c.Percent) - it.estimatedPoints(old)
	s.agg.Estimation += delta
	if it.Optional {
		s.agg.OptionalEstimation += delta
	}

	percent := c.Percent
	s.estimates[c.Index] = percent
	s.items[c.Index].Estimation = &percent
	u.Estimation = &percent
	value := percent
	itemID := it.ID
	u.Events = append(u.Events, models.LogEntry{Kind: models.LogKindChange, Category: models.LogCategoryEstimation, Value: &value, ItemID: &itemID})
	s.refreshRow(c.Index, u)
	return nil
}

// toggle adds or removes the item's current contribution.
func (s *State) toggle(index int, included bool, u *Update) {
	it := s.items[index]
	contribution := it.estimatedPoints(s.estimates[index])
	maxScore := PointsFrom(it.MaxScore)
	if !included {
		contribution, maxScore = -contribution, -maxScore
	}

	s.agg.Estimation += contribution
	if it.Optional {
		s.agg.OptionalEstimation += contribution
	} else {
		s.agg.MaxEstimate += maxScore
	}
	s.items[index].Checked = included

	kind := models.LogKindExclude
	if included {
		kind = models.LogKindInclude
	}
	itemID := it.ID
	u.ItemID = itemID
	u.Included = &included
	u.Events = append(u.Events, models.LogEntry{Kind: kind, Category: models.LogCategoryItem, ItemID: &itemID})
}

func (s *State) refreshRow(index int, u *Update) {
	it := s.items[index]
	row := &s.table.Rows[index]
	row.Checked = it.Checked
	row.Estimation = estimationText(it, s.scheme, s.l)
	if it.Estimated() {
		row.Value = *it.Estimation
	}
	copied := *row
	u.ItemID = it.ID
	u.Row = &copied
}
