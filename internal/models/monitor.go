package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GradeItem is a gradable component of a course as stored in the gradebook.
type GradeItem struct {
	ID        int64     `db:"id" json:"id"`
	CourseID  int64     `db:"course_id" json:"courseId"`
	Name      string    `db:"item_name" json:"name"`
	ItemType  string    `db:"item_type" json:"itemType"`
	GradeMax  float64   `db:"grade_max" json:"gradeMax"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Aggregation statuses the gradebook attaches to a grade.
const (
	AggregationExtra   = "extra"
	AggregationUnknown = "unknown"
	AggregationNoValue = "novalue"
)

// GradeEntry is one user's final grade for an item.
type GradeEntry struct {
	ID                int64    `db:"id" json:"id"`
	ItemID            int64    `db:"item_id" json:"itemId"`
	UserID            int64    `db:"user_id" json:"userId"`
	FinalGrade        *float64 `db:"final_grade" json:"finalGrade,omitempty"`
	AggregationStatus string   `db:"aggregation_status" json:"aggregationStatus"`
}

// ItemEstimate is the stored estimate of one item.
type ItemEstimate struct {
	Pos        int     `json:"pos"`
	ItemID     int64   `json:"id"`
	Estimation float64 `json:"est"`
}

// ItemChecked is the stored inclusion flag of one item.
type ItemChecked struct {
	Pos     int   `json:"pos"`
	ItemID  int64 `json:"id"`
	Checked bool  `json:"checked"`
}

// EstimationState is persisted as JSONB next to the monitor record.
type EstimationState struct {
	Estimations    []ItemEstimate `json:"Estimations"`
	CheckedIndexes []ItemChecked  `json:"CheckedIndexes"`
}

// Value marshals the state to JSON for persistence.
func (s EstimationState) Value() (driver.Value, error) {
	if s.Estimations == nil {
		s.Estimations = []ItemEstimate{}
	}
	if s.CheckedIndexes == nil {
		s.CheckedIndexes = []ItemChecked{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal estimation state: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON column into the state.
func (s *EstimationState) Scan(value interface{}) error {
	if value == nil {
		*s = EstimationState{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported estimation state type %T", value)
	}
	if len(data) == 0 {
		*s = EstimationState{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// EstimateFor returns the stored estimate of itemID.
func (s EstimationState) EstimateFor(itemID int64) (float64, bool) {
	for _, e := range s.Estimations {
		if e.ItemID == itemID {
			return e.Estimation, true
		}
	}
	return 0, false
}

// CheckedFor reports whether itemID is stored as checked.
func (s EstimationState) CheckedFor(itemID int64) bool {
	for _, c := range s.CheckedIndexes {
		if c.ItemID == itemID {
			return c.Checked
		}
	}
	return false
}

// MonitorRecord is one append-only snapshot of a student's monitor settings.
type MonitorRecord struct {
	ID                  string          `db:"id" json:"id"`
	UserID              int64           `db:"user_id" json:"userId"`
	CourseID            int64           `db:"course_id" json:"courseId"`
	Goal                int             `db:"goal" json:"goal"`
	SchemeUpdate        int64           `db:"scheme_update" json:"schemeUpdate"`
	Estimations         EstimationState `db:"estimations" json:"estimations"`
	ShowOthers          bool            `db:"show_others" json:"showOthers"`
	DismissNotification bool            `db:"dismiss_notification" json:"dismissNotification"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
}

// MonitorLog is a persisted telemetry event.
type MonitorLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	CourseID  int64     `db:"course_id" json:"courseId"`
	ContextID int64     `db:"context_id" json:"contextId"`
	Kind      string    `db:"kind" json:"kind"`
	Category  string    `db:"category" json:"category"`
	Value     *float64  `db:"value" json:"value,omitempty"`
	ItemID    *int64    `db:"item_id" json:"itemId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MonitorScope identifies whose monitor is shown in which course.
type MonitorScope struct {
	UserID    int64  `json:"userId" yaml:"userId"`
	CourseID  int64  `json:"courseId" yaml:"courseId"`
	ContextID int64  `json:"contextId" yaml:"contextId"`
	Locale    string `json:"locale,omitempty" yaml:"locale,omitempty"`
}

// DatasetItems carries item data as parallel arrays keyed by index.
type DatasetItems struct {
	IDs             []int64    `json:"ids" yaml:"ids"`
	Names           []string   `json:"names" yaml:"names"`
	MaxScores       []float64  `json:"maxScores" yaml:"maxScores"`
	Scores          []*float64 `json:"scores" yaml:"scores"`
	ClassAvgs       []*float64 `json:"classAvgs" yaml:"classAvgs"`
	Estimations     []*float64 `json:"estimations" yaml:"estimations"`
	OptionalIndexes []int      `json:"optionalIndexes" yaml:"optionalIndexes"`
	CheckedIndexes  []int      `json:"checkedIndexes" yaml:"checkedIndexes"`
}

// Dataset is everything the monitor needs to project a course.
type Dataset struct {
	Items            DatasetItems `json:"items" yaml:"items"`
	Goal             int          `json:"goal" yaml:"goal"`
	Scheme           []float64    `json:"scheme" yaml:"scheme"`
	LastSchemeUpdate *time.Time   `json:"lastSchemeUpdate,omitempty" yaml:"lastSchemeUpdate,omitempty"`
	ShowAverage      bool         `json:"showAverage" yaml:"showAverage"`
}

// Telemetry event kinds and categories.
const (
	LogKindInclude = "INCLUDE"
	LogKindExclude = "EXCLUDE"
	LogKindChange  = "CHANGE"
	LogKindShow    = "SHOW"
	LogKindHide    = "HIDE"
	LogKindDismiss = "DISMISS"

	LogCategoryItem          = "ITEM"
	LogCategoryEstimation    = "ESTIMATION"
	LogCategoryGoal          = "GOAL"
	LogCategoryCourseAverage = "COURSE AVERAGE"
	LogCategorySchemeUpdate  = "SCHEME UPDATE"
)

// LogEntry is a telemetry tuple waiting for the next flush.
type LogEntry struct {
	Kind     string   `json:"kind" yaml:"kind"`
	Category string   `json:"category" yaml:"category"`
	Value    *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	ItemID   *int64   `json:"itemId,omitempty" yaml:"itemId,omitempty"`
}

// MonitorChanges holds only the fields edited since the last flush.
type MonitorChanges struct {
	Goal             *int              `json:"goal,omitempty" yaml:"goal,omitempty"`
	ShowAverage      *bool             `json:"showAverage,omitempty" yaml:"showAverage,omitempty"`
	SchemeUpdateSeen *bool             `json:"schemeUpdateSeen,omitempty" yaml:"schemeUpdateSeen,omitempty"`
	Estimations      map[int64]float64 `json:"estimations,omitempty" yaml:"estimations,omitempty"`
	Checked          map[int64]bool    `json:"checked,omitempty" yaml:"checked,omitempty"`
}

// Empty reports whether no field is set.
func (c MonitorChanges) Empty() bool {
	return c.Goal == nil && c.ShowAverage == nil && c.SchemeUpdateSeen == nil &&
		len(c.Estimations) == 0 && len(c.Checked) == 0
}

// ChangeBatch is one flushed change-set plus the telemetry gathered with it.
type ChangeBatch struct {
	Scope   MonitorScope   `json:"scope" yaml:"scope"`
	Changes MonitorChanges `json:"changes" yaml:"changes"`
	Logs    []LogEntry     `json:"logs,omitempty" yaml:"logs,omitempty"`
}
